package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/skobkin/amdgpu-querer/internal/cli"
	"github.com/skobkin/amdgpu-querer/internal/config"
	"github.com/skobkin/amdgpu-querer/internal/sysfs"
	"github.com/skobkin/amdgpu-querer/internal/version"
)

var (
	buildVersion = "dev"
	buildCommit  = ""
	buildTime    = ""
)

func main() {
	version.Set(version.Info{
		Version:   buildVersion,
		Commit:    buildCommit,
		BuildTime: buildTime,
	})

	cfg, err := config.Load()
	if err != nil {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})
		slog.New(handler).Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})
	logger := slog.New(handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	opener := sysfs.Opener(sysfs.Options{
		SysfsRoot:    cfg.SysfsRoot,
		DebugfsRoot:  cfg.DebugfsRoot,
		ResolveNames: cfg.ResolveNames,
	}, logger.With("component", "sysfs"))

	code := cli.ExecuteCapabilities(ctx, cli.Options{
		Open:   opener,
		Logger: logger,
		Out:    os.Stdout,
	}, os.Args[1:])
	stop()
	os.Exit(code)
}
