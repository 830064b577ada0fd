package sysfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/skobkin/amdgpu-querer/internal/monitor"
)

// probe is one candidate source for a metric. present reports whether the
// source exists on this device; read fetches the current value.
type probe struct {
	source  string
	present func() (bool, error)
	read    func() (float64, error)
}

func fileProbe(path string, read func(string) (float64, error)) probe {
	return probe{
		source:  path,
		present: func() (bool, error) { return exists(path) },
		read:    func() (float64, error) { return read(path) },
	}
}

func debugProbe(path string, info *debugInfo, field func(*debugInfo) *float64) probe {
	return probe{
		source: path + " (debugfs)",
		present: func() (bool, error) {
			return field(info) != nil, nil
		},
		read: func() (float64, error) {
			if value := field(info); value != nil {
				return *value, nil
			}
			return 0, monitor.ErrUnavailable
		},
	}
}

func scaled(divisor float64) func(string) (float64, error) {
	return func(path string) (float64, error) {
		return readScaled(path, divisor)
	}
}

// probes lists the sources for kind in priority order. The debug info is
// parsed once per capability query or snapshot and shared between kinds.
func (d *Device) probes(kind monitor.Kind, dbg *debugInfo) []probe {
	debugPath := filepath.Join(d.debugCardDir, debugPmInfoFilename)

	switch kind {
	case monitor.GPUUsage:
		return []probe{
			fileProbe(filepath.Join(d.devicePath, gpuBusyFilename), readPercent),
			debugProbe(debugPath, dbg, func(i *debugInfo) *float64 { return i.gpuLoad }),
		}
	case monitor.GPUClockSpeed:
		return []probe{
			fileProbe(filepath.Join(d.devicePath, ppDpmSclkFilename), readCurrentClock),
			d.hwmonProbe(hwmonSclkFreqFile, scaled(1_000_000)),
			debugProbe(debugPath, dbg, func(i *debugInfo) *float64 { return i.sclkMHz }),
		}
	case monitor.GPUVRAMClockSpeed:
		return []probe{
			fileProbe(filepath.Join(d.devicePath, ppDpmMclkFilename), readCurrentClock),
			d.hwmonProbe(hwmonMclkFreqFile, scaled(1_000_000)),
			debugProbe(debugPath, dbg, func(i *debugInfo) *float64 { return i.mclkMHz }),
		}
	case monitor.GPUTemperature:
		probes := []probe{d.labeledProbe("temp", "edge", scaled(1000))}
		if !hasLabels(d.hwmonPath, "temp") {
			probes = append(probes, d.hwmonProbe("temp1_input", scaled(1000)))
		}
		return append(probes, debugProbe(debugPath, dbg, func(i *debugInfo) *float64 { return i.tempC }))
	case monitor.GPUHotspotTemperature:
		return []probe{d.labeledProbe("temp", "junction", scaled(1000))}
	case monitor.GPUIntakeTemperature:
		return []probe{d.labeledProbe("temp", "intake", scaled(1000))}
	case monitor.GPUPower:
		return []probe{
			d.hwmonProbe(hwmonPowerAverageFile, scaled(1_000_000)),
			debugProbe(debugPath, dbg, func(i *debugInfo) *float64 { return i.powerW }),
		}
	case monitor.GPUTotalBoardPower:
		return []probe{d.hwmonProbe(hwmonPowerInputFile, scaled(1_000_000))}
	case monitor.GPUFanSpeed:
		return []probe{d.hwmonProbe(hwmonFanFile, readFloatValue)}
	case monitor.GPUVRAM:
		return []probe{fileProbe(filepath.Join(d.devicePath, vramUsedFilename), readMiB)}
	case monitor.GPUVoltage:
		probes := []probe{d.labeledProbe("in", "vddgfx", readFloatValue)}
		if !hasLabels(d.hwmonPath, "in") {
			probes = append(probes, d.hwmonProbe("in0_input", readFloatValue))
		}
		return probes
	}
	return nil
}

func (d *Device) hwmonProbe(name string, read func(string) (float64, error)) probe {
	if d.hwmonPath == "" {
		return missingProbe(name)
	}
	return fileProbe(filepath.Join(d.hwmonPath, name), read)
}

func (d *Device) labeledProbe(prefix, label string, read func(string) (float64, error)) probe {
	path := findLabeledInput(d.hwmonPath, prefix, label)
	if path == "" {
		return missingProbe(prefix + " " + label)
	}
	return fileProbe(path, read)
}

func missingProbe(source string) probe {
	return probe{
		source:  source,
		present: func() (bool, error) { return false, nil },
		read:    func() (float64, error) { return 0, monitor.ErrUnsupported },
	}
}

func exists(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}
