package report

import (
	"math"
	"strconv"

	"github.com/skobkin/amdgpu-querer/internal/monitor"
)

// Metric describes how one metric kind is labelled and formatted.
type Metric struct {
	Kind monitor.Kind
	// Label is used in both the support-status line and the value line.
	Label   string
	Unit    string
	Integer bool
}

const degreesCelsius = "°C"

var metrics = []Metric{
	{Kind: monitor.GPUUsage, Label: "GPU usage", Unit: "%"},
	{Kind: monitor.GPUClockSpeed, Label: "GPU clock speed", Unit: "MHz", Integer: true},
	{Kind: monitor.GPUVRAMClockSpeed, Label: "GPU VRAM clock speed", Unit: "MHz", Integer: true},
	{Kind: monitor.GPUTemperature, Label: "GPU temperature", Unit: degreesCelsius},
	{Kind: monitor.GPUHotspotTemperature, Label: "GPU hotspot temperature", Unit: degreesCelsius},
	{Kind: monitor.GPUPower, Label: "GPU power", Unit: "W"},
	{Kind: monitor.GPUFanSpeed, Label: "GPU fan speed", Unit: "RPM", Integer: true},
	{Kind: monitor.GPUVRAM, Label: "GPU VRAM", Unit: "MB", Integer: true},
	{Kind: monitor.GPUVoltage, Label: "GPU voltage", Unit: "mV", Integer: true},
	{Kind: monitor.GPUTotalBoardPower, Label: "GPU total board power", Unit: "W"},
	{Kind: monitor.GPUIntakeTemperature, Label: "GPU intake temperature", Unit: degreesCelsius},
}

// Metrics returns the metric table in full-report order.
func Metrics() []Metric {
	return append([]Metric(nil), metrics...)
}

// Lookup returns the table entry for kind.
func Lookup(kind monitor.Kind) (Metric, bool) {
	for _, m := range metrics {
		if m.Kind == kind {
			return m, true
		}
	}
	return Metric{}, false
}

// Format renders a value without its unit. Fractional metrics use six
// significant digits, so 42 prints as "42" and 67.5 as "67.5".
func (m Metric) Format(value float64) string {
	if m.Integer {
		return strconv.FormatInt(int64(math.Round(value)), 10)
	}
	return strconv.FormatFloat(value, 'g', 6, 64)
}
