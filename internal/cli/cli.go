// Package cli builds the command tree of amdgpu-querer.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/skobkin/amdgpu-querer/internal/app"
	"github.com/skobkin/amdgpu-querer/internal/monitor"
	"github.com/skobkin/amdgpu-querer/internal/report"
)

// Options carries the dependencies of the command tree.
type Options struct {
	Open   monitor.Opener
	Logger *slog.Logger
	Out    io.Writer
}

// selectors maps the legacy single-metric arguments to metric kinds.
var selectors = map[string]monitor.Kind{
	"--gpu_usage":     monitor.GPUUsage,
	"--gpu_mem_usage": monitor.GPUVRAM,
	"--gpu_temp":      monitor.GPUTemperature,
}

const (
	verboseFlag   = "-v"
	notRecognised = "Argument `%s` is not recognised.\n"
)

type selection struct {
	all      bool
	kind     monitor.Kind
	labelled bool
	unknown  string
}

// parseSelection reads the positional arguments. The verbose flag only counts
// as the second of exactly two arguments.
func parseSelection(args []string) selection {
	if len(args) == 0 {
		return selection{all: true, labelled: true}
	}
	kind, ok := selectors[args[0]]
	if !ok {
		return selection{unknown: args[0]}
	}
	return selection{
		kind:     kind,
		labelled: len(args) == 2 && args[1] == verboseFlag,
	}
}

// NewRootCommand returns the querer command. Its arguments are dispatched by
// position rather than parsed as flags, and it has no subcommands, so every
// unrecognised first argument reaches the same message.
func NewRootCommand(opts Options) *cobra.Command {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	root := &cobra.Command{
		Use:   "amdgpu-querer [--gpu_usage|--gpu_mem_usage|--gpu_temp [-v]]",
		Short: "Print live telemetry of the first AMD GPU",
		Long: `Print live telemetry of the first AMD GPU.

Without arguments every metric is printed with its support status.
A single selector prints the bare value of one metric; add -v for the labelled form:

  --gpu_usage      GPU usage in %
  --gpu_mem_usage  VRAM in use in MB
  --gpu_temp       GPU edge temperature in °C`,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceErrors:      true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := parseSelection(args)
			out := cmd.OutOrStdout()
			if sel.unknown != "" {
				_, err := fmt.Fprintf(out, notRecognised, sel.unknown)
				return err
			}

			return app.Acquire(cmd.Context(), opts.Open, logger, func(s app.Session) error {
				r := report.New(out, s.Support, s.Metrics, logger.With("component", "report", "gpu_id", s.GPU.ID()))
				if sel.all {
					return r.Full()
				}
				return r.Show(sel.kind, sel.labelled)
			})
		},
	}

	return root
}

// Execute runs the querer command and returns the process exit code.
// Startup chain failures print their message on the command output. Any
// other failure happens after the chain and leaves the exit code at 0.
func Execute(ctx context.Context, opts Options, args []string) int {
	opts = withDefaults(opts)
	// cobra answers its hidden completion requests before dispatch.
	if len(args) > 0 && (args[0] == cobra.ShellCompRequestCmd || args[0] == cobra.ShellCompNoDescRequestCmd) {
		fmt.Fprintf(opts.Out, notRecognised, args[0])
		return app.ExitOK
	}
	return execute(ctx, NewRootCommand(opts), opts, args, app.ExitOK)
}

func withDefaults(opts Options) Options {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return opts
}

func execute(ctx context.Context, cmd *cobra.Command, opts Options, args []string, fallback int) int {
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(opts.Out)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return app.ExitOK
	}

	var exitErr *app.ExitError
	if errors.As(err, &exitErr) {
		opts.Logger.Debug("startup chain failed", "code", exitErr.Code, "err", exitErr.Err)
		fmt.Fprintln(opts.Out, exitErr.Message)
		return exitErr.Code
	}

	opts.Logger.Error("command failed", "err", err)
	return fallback
}
