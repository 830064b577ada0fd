package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skobkin/amdgpu-querer/internal/app"
	"github.com/skobkin/amdgpu-querer/internal/monitor"
	"github.com/skobkin/amdgpu-querer/internal/monitor/monitortest"
)

func run(t *testing.T, sys *monitortest.System, args ...string) (string, int) {
	t.Helper()

	var out bytes.Buffer
	if args == nil {
		args = []string{}
	}
	code := Execute(context.Background(), Options{Open: sys.Opener(), Out: &out}, args)
	return out.String(), code
}

func TestTerseSelectors(t *testing.T) {
	tests := []struct {
		arg  string
		want string
	}{
		{"--gpu_usage", "42\n"},
		{"--gpu_mem_usage", "2048\n"},
		{"--gpu_temp", "55\n"},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			out, code := run(t, monitortest.NewSystem(), tt.arg)
			assert.Equal(t, app.ExitOK, code)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestVerboseSelector(t *testing.T) {
	out, code := run(t, monitortest.NewSystem(), "--gpu_usage", "-v")
	assert.Equal(t, app.ExitOK, code)
	assert.Equal(t, "GPU usage support status: true\nThe GPU usage is: 42%\n", out)

	out, _ = run(t, monitortest.NewSystem(), "--gpu_mem_usage", "-v")
	assert.Equal(t, "GPU VRAM support status: true\nThe GPU VRAM is: 2048MB\n", out)

	out, _ = run(t, monitortest.NewSystem(), "--gpu_temp", "-v")
	assert.Equal(t, "GPU temperature support status: true\nThe GPU temperature is: 55°C\n", out)
}

func TestVerboseFlagOnlyAsSecondOfTwo(t *testing.T) {
	out, code := run(t, monitortest.NewSystem(), "--gpu_usage", "-v", "extra")
	assert.Equal(t, app.ExitOK, code)
	assert.Equal(t, "42\n", out)

	out, _ = run(t, monitortest.NewSystem(), "--gpu_usage", "--verbose")
	assert.Equal(t, "42\n", out)
}

func TestUnsupportedTerseSelectorPrintsNothing(t *testing.T) {
	sys := monitortest.NewSystem()
	sys.Supported[monitor.GPUTemperature] = false

	out, code := run(t, sys, "--gpu_temp")
	assert.Equal(t, app.ExitOK, code)
	assert.Empty(t, out)

	out, _ = run(t, sys, "--gpu_temp", "-v")
	assert.Equal(t, "GPU temperature support status: false\n", out)
}

func TestUnrecognisedArgument(t *testing.T) {
	tests := [][]string{
		{"--bogus_flag"},
		{"-v"},
		{"--help"},
		{"status"},
		{"help"},
		{"help", "-v"},
		{"help", "--gpu_usage"},
		{"version"},
		{"version", "-v"},
		{"capabilities"},
		{"capabilities", "--gpu_usage"},
		{"completion", "bash"},
		{"__complete", "--gpu"},
	}

	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			sys := monitortest.NewSystem()
			out, code := run(t, sys, args...)
			assert.Equal(t, app.ExitOK, code)
			assert.Equal(t, "Argument `"+args[0]+"` is not recognised.\n", out)
			assert.Zero(t, sys.Opened, "service must not be opened for an unknown argument")
		})
	}
}

func TestFullReport(t *testing.T) {
	sys := monitortest.NewSystem()
	out, code := run(t, sys)
	assert.Equal(t, app.ExitOK, code)

	assert.True(t, strings.HasPrefix(out, "The current GPU metrics: \nThe GPU time stamp is: 1700000000000ms\n"))
	for _, line := range []string{
		"The GPU usage is: 42%",
		"The GPU clock speed is: 2450MHz",
		"The GPU VRAM clock speed is: 1249MHz",
		"The GPU temperature is: 55°C",
		"The GPU hotspot temperature is: 67.5°C",
		"The GPU power is: 120W",
		"The GPU fan speed is: 1180RPM",
		"The GPU VRAM is: 2048MB",
		"The GPU voltage is: 893mV",
		"The GPU total board power is: 180.25W",
		"The GPU intake temperature is: 31°C",
	} {
		assert.Contains(t, out, line+"\n")
	}
	assert.Equal(t, 11, strings.Count(out, "support status: true"))
	assert.Equal(t, 1, sys.Closed)
}

func TestStartupFailures(t *testing.T) {
	tests := []struct {
		step      monitortest.Step
		noDevices bool
		code      int
		message   string
	}{
		{monitortest.StepOpen, false, 1, "g_ADLXHelp initialize failed"},
		{monitortest.StepPerformanceMonitoring, false, 2, "Get performance monitoring services failed"},
		{monitortest.StepGPUs, false, 3, "Get GPU list failed"},
		{monitortest.StepNone, true, 4, "Get particular GPU failed"},
		{monitortest.StepSupportedMetrics, false, 5, "Get GPU metrics support failed"},
		{monitortest.StepCurrentMetrics, false, 6, "Get current GPU metrics failed"},
	}

	for _, tt := range tests {
		for _, args := range [][]string{{}, {"--gpu_usage"}, {"--gpu_temp", "-v"}} {
			t.Run(tt.message+"/"+strings.Join(args, " "), func(t *testing.T) {
				sys := monitortest.NewSystem()
				sys.FailAt = tt.step
				if tt.noDevices {
					sys.Devices = nil
				}

				out, code := run(t, sys, args...)
				assert.Equal(t, tt.code, code)
				assert.Equal(t, tt.message+"\n", out, "no output may follow the failing step")
				assert.Equal(t, sys.Opened, sys.Closed)
			})
		}
	}
}

func TestParseSelection(t *testing.T) {
	assert.Equal(t, selection{all: true, labelled: true}, parseSelection(nil))
	assert.Equal(t, selection{kind: monitor.GPUVRAM}, parseSelection([]string{"--gpu_mem_usage"}))
	assert.Equal(t, selection{kind: monitor.GPUTemperature, labelled: true}, parseSelection([]string{"--gpu_temp", "-v"}))
	assert.Equal(t, selection{unknown: "--gpu_power"}, parseSelection([]string{"--gpu_power", "-v"}))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestOutputFailureAfterChainKeepsExitOK(t *testing.T) {
	sys := monitortest.NewSystem()
	code := Execute(context.Background(), Options{Open: sys.Opener(), Out: failingWriter{}}, []string{"--gpu_usage"})
	assert.Equal(t, app.ExitOK, code)
	assert.Equal(t, 1, sys.Closed)
}
