// Package app runs the service acquisition chain and hands the selected
// device's data to the reporter.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/skobkin/amdgpu-querer/internal/monitor"
)

// Session is the state gathered by a successful acquisition chain.
type Session struct {
	GPU     monitor.GPU
	Support monitor.Support
	Metrics monitor.Metrics
}

// Acquire opens the monitoring service, selects the first GPU and fetches its
// capability descriptor and current snapshot, then calls fn. The service is
// closed on every path once it has been opened.
func Acquire(ctx context.Context, open monitor.Opener, logger *slog.Logger, fn func(Session) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "app")

	sys, err := open(ctx)
	if err != nil {
		return exitError(ExitInitialize, "g_ADLXHelp initialize failed", err)
	}
	defer func() {
		if cerr := sys.Close(); cerr != nil {
			logger.Warn("monitoring service close", "err", cerr)
		}
	}()

	if err := ctx.Err(); err != nil {
		return exitError(ExitPerformanceMonitoring, "Get performance monitoring services failed", err)
	}
	perf, err := sys.PerformanceMonitoring()
	if err != nil {
		return exitError(ExitPerformanceMonitoring, "Get performance monitoring services failed", err)
	}

	if err := ctx.Err(); err != nil {
		return exitError(ExitGPUList, "Get GPU list failed", err)
	}
	gpus, err := sys.GPUs()
	if err != nil {
		return exitError(ExitGPUList, "Get GPU list failed", err)
	}

	device, err := monitor.First(gpus)
	if err != nil {
		return exitError(ExitSelectGPU, "Get particular GPU failed", err)
	}
	logger.Debug("selected GPU", "gpu_id", device.ID(), "name", device.Name(), "pci", device.PCI(), "available", len(gpus))

	support, err := perf.SupportedMetrics(device)
	if err != nil {
		return exitError(ExitMetricsSupport, "Get GPU metrics support failed", err)
	}
	metrics, err := perf.CurrentMetrics(device)
	if err != nil {
		return exitError(ExitCurrentMetrics, "Get current GPU metrics failed", err)
	}

	return fn(Session{GPU: device, Support: support, Metrics: metrics})
}

// ExitCode maps an error returned by Acquire to a process exit code. Errors
// from the report callback come after a successful chain and map to ExitOK.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitOK
}
