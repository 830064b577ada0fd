// Package sysfs implements the GPU monitoring service on top of the amdgpu
// driver's sysfs, hwmon and debugfs files.
package sysfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/skobkin/amdgpu-querer/internal/gpu"
	"github.com/skobkin/amdgpu-querer/internal/monitor"
)

// Options locates the kernel filesystems the service reads from.
type Options struct {
	SysfsRoot    string
	DebugfsRoot  string
	ResolveNames bool
}

// System is an open handle on the sysfs monitoring service.
type System struct {
	opts   Options
	root   *os.Root
	logger *slog.Logger
}

var _ monitor.System = (*System)(nil)

// Open initialises the service. It fails when the sysfs root cannot be opened.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*System, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	root, err := os.OpenRoot(opts.SysfsRoot)
	if err != nil {
		return nil, fmt.Errorf("open sysfs root: %w", err)
	}

	logger.Debug("monitoring service opened", "sysfs_root", opts.SysfsRoot, "debugfs_root", opts.DebugfsRoot)
	return &System{opts: opts, root: root, logger: logger}, nil
}

// Opener adapts Open to monitor.Opener.
func Opener(opts Options, logger *slog.Logger) monitor.Opener {
	return func(ctx context.Context) (monitor.System, error) {
		return Open(ctx, opts, logger)
	}
}

// PerformanceMonitoring returns the metrics subservice. The DRM class
// directory must exist for the driver to expose any telemetry.
func (s *System) PerformanceMonitoring() (monitor.PerformanceMonitor, error) {
	info, err := s.root.Stat(gpu.DRMClassPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, gpu.ErrNoDRM
		}
		return nil, fmt.Errorf("stat drm class: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", gpu.DRMClassPath)
	}
	return &perfMonitor{logger: s.logger}, nil
}

// GPUs enumerates AMD devices ordered by card index.
func (s *System) GPUs() ([]monitor.GPU, error) {
	infos, err := gpu.Discover(s.opts.SysfsRoot, gpu.Options{ResolveNames: s.opts.ResolveNames}, s.logger.With("component", "gpu_discovery"))
	if err != nil {
		return nil, fmt.Errorf("discover gpus: %w", err)
	}

	devices := make([]monitor.GPU, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, newDevice(info, s.opts))
	}
	s.logger.Debug("discovered GPUs", "count", len(devices))
	return devices, nil
}

// Close releases the sysfs root handle.
func (s *System) Close() error {
	if s.root == nil {
		return nil
	}
	err := s.root.Close()
	s.root = nil
	return err
}

// Device is a monitor.GPU backed by a DRM card directory.
type Device struct {
	info         gpu.Info
	devicePath   string
	debugCardDir string
	hwmonPath    string
}

func newDevice(info gpu.Info, opts Options) *Device {
	devicePath := filepath.Join(opts.SysfsRoot, gpu.DRMClassPath, info.ID, "device")
	return &Device{
		info:         info,
		devicePath:   devicePath,
		debugCardDir: filepath.Join(opts.DebugfsRoot, "dri", strconv.Itoa(info.Index)),
		hwmonPath:    detectHwmon(devicePath),
	}
}

func (d *Device) ID() string   { return d.info.ID }
func (d *Device) Name() string { return d.info.Name }
func (d *Device) PCI() string  { return d.info.PCI }
