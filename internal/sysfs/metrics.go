package sysfs

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/skobkin/amdgpu-querer/internal/monitor"
)

type perfMonitor struct {
	logger *slog.Logger
}

// SupportedMetrics probes which metric sources exist on the device.
func (p *perfMonitor) SupportedMetrics(g monitor.GPU) (monitor.Support, error) {
	dev, err := asDevice(g)
	if err != nil {
		return nil, err
	}

	dbg := readDebugInfo(filepath.Join(dev.debugCardDir, debugPmInfoFilename))
	support := &Support{
		flags:  make(map[monitor.Kind]bool),
		errors: make(map[monitor.Kind]error),
	}
	for _, kind := range monitor.Kinds() {
		var errs []error
		for _, pr := range dev.probes(kind, &dbg) {
			ok, err := pr.present()
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ok {
				support.flags[kind] = true
				break
			}
		}
		if !support.flags[kind] && len(errs) > 0 {
			support.errors[kind] = errs[0]
		}
	}
	return support, nil
}

// CurrentMetrics reads every available metric of the device at once.
func (p *perfMonitor) CurrentMetrics(g monitor.GPU) (monitor.Metrics, error) {
	dev, err := asDevice(g)
	if err != nil {
		return nil, err
	}

	logger := p.logger.With("card", dev.ID())
	dbg := readDebugInfo(filepath.Join(dev.debugCardDir, debugPmInfoFilename))
	snap := &Snapshot{
		timestamp: time.Now().UnixMilli(),
		values:    make(map[monitor.Kind]float64),
		errors:    make(map[monitor.Kind]error),
	}

	for _, kind := range monitor.Kinds() {
		snap.errors[kind] = monitor.ErrUnsupported
		for _, pr := range dev.probes(kind, &dbg) {
			if ok, _ := pr.present(); !ok {
				continue
			}
			value, err := pr.read()
			if err != nil {
				logger.Debug("metric source failed", "metric", kind, "source", pr.source, "err", err)
				snap.errors[kind] = fmt.Errorf("%w: %s: %v", monitor.ErrUnavailable, kind, err)
				continue
			}
			snap.values[kind] = value
			delete(snap.errors, kind)
			break
		}
	}
	return snap, nil
}

func asDevice(g monitor.GPU) (*Device, error) {
	dev, ok := g.(*Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("gpu %T is not a sysfs device", g)
	}
	return dev, nil
}

// Support is the capability descriptor computed from present sources.
type Support struct {
	flags  map[monitor.Kind]bool
	errors map[monitor.Kind]error
}

func (s *Support) IsSupported(kind monitor.Kind) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("unknown metric %v", kind)
	}
	if err := s.errors[kind]; err != nil {
		return false, err
	}
	return s.flags[kind], nil
}

// Snapshot holds the values read at one instant.
type Snapshot struct {
	timestamp int64
	values    map[monitor.Kind]float64
	errors    map[monitor.Kind]error
}

func (s *Snapshot) Timestamp() (int64, error) {
	return s.timestamp, nil
}

func (s *Snapshot) Value(kind monitor.Kind) (float64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("unknown metric %v", kind)
	}
	if err := s.errors[kind]; err != nil {
		return 0, err
	}
	return s.values[kind], nil
}
