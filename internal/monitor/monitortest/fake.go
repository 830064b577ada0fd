// Package monitortest provides an in-memory monitor.System for tests.
package monitortest

import (
	"context"
	"errors"
	"fmt"

	"github.com/skobkin/amdgpu-querer/internal/monitor"
)

// Step names a call in the service acquisition chain.
type Step int

const (
	StepNone Step = iota
	StepOpen
	StepPerformanceMonitoring
	StepGPUs
	StepSupportedMetrics
	StepCurrentMetrics
)

// ErrInjected is returned by the step configured in System.FailAt.
var ErrInjected = errors.New("injected failure")

// Device is a fake monitor.GPU.
type Device struct {
	DeviceID   string
	DeviceName string
	PCISlot    string
}

func (d Device) ID() string   { return d.DeviceID }
func (d Device) Name() string { return d.DeviceName }
func (d Device) PCI() string  { return d.PCISlot }

// System is a configurable fake monitoring service. Values holds readings for
// supported kinds; a kind present in Supported but missing from Values fails
// to read. SupportErrors and ReadErrors force per-kind failures.
type System struct {
	Devices       []monitor.GPU
	Supported     map[monitor.Kind]bool
	Values        map[monitor.Kind]float64
	SupportErrors map[monitor.Kind]error
	ReadErrors    map[monitor.Kind]error
	TimestampMS   int64
	FailAt        Step

	Opened int
	Closed int
}

// NewSystem returns a fake with one device and every metric supported.
func NewSystem() *System {
	values := map[monitor.Kind]float64{
		monitor.GPUUsage:              42,
		monitor.GPUClockSpeed:         2450,
		monitor.GPUVRAMClockSpeed:     1249,
		monitor.GPUTemperature:        55,
		monitor.GPUHotspotTemperature: 67.5,
		monitor.GPUPower:              120,
		monitor.GPUFanSpeed:           1180,
		monitor.GPUVRAM:               2048,
		monitor.GPUVoltage:            893,
		monitor.GPUTotalBoardPower:    180.25,
		monitor.GPUIntakeTemperature:  31,
	}
	supported := make(map[monitor.Kind]bool, len(values))
	for kind := range values {
		supported[kind] = true
	}
	return &System{
		Devices:     []monitor.GPU{Device{DeviceID: "card0", DeviceName: "AMD Radeon RX 7900 XTX", PCISlot: "0000:03:00.0"}},
		Supported:   supported,
		Values:      values,
		TimestampMS: 1700000000000,
	}
}

// Opener returns a monitor.Opener handing out s.
func (s *System) Opener() monitor.Opener {
	return func(ctx context.Context) (monitor.System, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.FailAt == StepOpen {
			return nil, fmt.Errorf("open: %w", ErrInjected)
		}
		s.Opened++
		return s, nil
	}
}

func (s *System) PerformanceMonitoring() (monitor.PerformanceMonitor, error) {
	if s.FailAt == StepPerformanceMonitoring {
		return nil, fmt.Errorf("performance monitoring: %w", ErrInjected)
	}
	return perfMonitor{sys: s}, nil
}

func (s *System) GPUs() ([]monitor.GPU, error) {
	if s.FailAt == StepGPUs {
		return nil, fmt.Errorf("gpus: %w", ErrInjected)
	}
	return append([]monitor.GPU(nil), s.Devices...), nil
}

func (s *System) Close() error {
	s.Closed++
	return nil
}

type perfMonitor struct {
	sys *System
}

func (p perfMonitor) SupportedMetrics(monitor.GPU) (monitor.Support, error) {
	if p.sys.FailAt == StepSupportedMetrics {
		return nil, fmt.Errorf("supported metrics: %w", ErrInjected)
	}
	return support{sys: p.sys}, nil
}

func (p perfMonitor) CurrentMetrics(monitor.GPU) (monitor.Metrics, error) {
	if p.sys.FailAt == StepCurrentMetrics {
		return nil, fmt.Errorf("current metrics: %w", ErrInjected)
	}
	return metrics{sys: p.sys}, nil
}

type support struct {
	sys *System
}

func (s support) IsSupported(kind monitor.Kind) (bool, error) {
	if err := s.sys.SupportErrors[kind]; err != nil {
		return false, err
	}
	return s.sys.Supported[kind], nil
}

type metrics struct {
	sys *System
}

func (m metrics) Timestamp() (int64, error) {
	return m.sys.TimestampMS, nil
}

func (m metrics) Value(kind monitor.Kind) (float64, error) {
	if err := m.sys.ReadErrors[kind]; err != nil {
		return 0, err
	}
	if !m.sys.Supported[kind] {
		return 0, monitor.ErrUnsupported
	}
	value, ok := m.sys.Values[kind]
	if !ok {
		return 0, monitor.ErrUnavailable
	}
	return value, nil
}
