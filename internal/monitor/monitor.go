// Package monitor defines the contract of the GPU monitoring service the
// reporter talks to. Implementations own all sensor access; callers only
// enumerate devices, ask which metrics a device supports and read a
// point-in-time snapshot.
package monitor

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned when a metric is read that the device does not expose.
	ErrUnsupported = errors.New("metric not supported")
	// ErrUnavailable is returned when a supported metric could not be read for the snapshot.
	ErrUnavailable = errors.New("metric value unavailable")
	// ErrNoGPU is returned when a device is requested from an empty enumeration.
	ErrNoGPU = errors.New("no gpu available")
)

// Kind identifies a single telemetry metric.
type Kind int

const (
	GPUUsage Kind = iota
	GPUClockSpeed
	GPUVRAMClockSpeed
	GPUTemperature
	GPUHotspotTemperature
	GPUPower
	GPUFanSpeed
	GPUVRAM
	GPUVoltage
	GPUTotalBoardPower
	GPUIntakeTemperature
)

var kindNames = [...]string{
	GPUUsage:              "gpu_usage",
	GPUClockSpeed:         "gpu_clock_speed",
	GPUVRAMClockSpeed:     "gpu_vram_clock_speed",
	GPUTemperature:        "gpu_temperature",
	GPUHotspotTemperature: "gpu_hotspot_temperature",
	GPUPower:              "gpu_power",
	GPUFanSpeed:           "gpu_fan_speed",
	GPUVRAM:               "gpu_vram",
	GPUVoltage:            "gpu_voltage",
	GPUTotalBoardPower:    "gpu_total_board_power",
	GPUIntakeTemperature:  "gpu_intake_temperature",
}

// Kinds returns every metric kind in report order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames))
	for k := range kindNames {
		kinds = append(kinds, Kind(k))
	}
	return kinds
}

// Valid reports whether k is a known metric kind.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < len(kindNames)
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// GPU is a handle to one physical device.
type GPU interface {
	ID() string
	Name() string
	PCI() string
}

// Support is the capability descriptor of a device.
type Support interface {
	IsSupported(kind Kind) (bool, error)
}

// Metrics is a point-in-time snapshot of a device's sensors.
type Metrics interface {
	// Timestamp returns the snapshot time in milliseconds since the Unix epoch.
	Timestamp() (int64, error)
	Value(kind Kind) (float64, error)
}

// PerformanceMonitor hands out capability descriptors and snapshots per device.
type PerformanceMonitor interface {
	SupportedMetrics(gpu GPU) (Support, error)
	CurrentMetrics(gpu GPU) (Metrics, error)
}

// System is an initialised connection to the monitoring service.
type System interface {
	PerformanceMonitoring() (PerformanceMonitor, error)
	GPUs() ([]GPU, error)
	Close() error
}

// Opener initialises the monitoring service.
type Opener func(ctx context.Context) (System, error)

// First returns the first device of an enumeration.
func First(gpus []GPU) (GPU, error) {
	if len(gpus) == 0 || gpus[0] == nil {
		return nil, ErrNoGPU
	}
	return gpus[0], nil
}
