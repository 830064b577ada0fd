package sysfs

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

const (
	gpuBusyFilename     = "gpu_busy_percent"
	ppDpmSclkFilename   = "pp_dpm_sclk"
	ppDpmMclkFilename   = "pp_dpm_mclk"
	vramUsedFilename    = "mem_info_vram_used"
	debugPmInfoFilename = "amdgpu_pm_info"

	hwmonFanFile          = "fan1_input"
	hwmonPowerAverageFile = "power1_average"
	hwmonPowerInputFile   = "power1_input"
	hwmonSclkFreqFile     = "freq1_input"
	hwmonMclkFreqFile     = "freq2_input"

	bytesPerMiB = 1 << 20
)

var errEmptyValue = errors.New("empty value")

func readFloatValue(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	valueStr := strings.TrimSpace(string(data))
	if valueStr == "" {
		return 0, errEmptyValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("non-finite value %q", valueStr)
	}
	return value, nil
}

func readScaled(path string, divisor float64) (float64, error) {
	value, err := readFloatValue(path)
	if err != nil {
		return 0, err
	}
	return value / divisor, nil
}

func readPercent(path string) (float64, error) {
	value, err := readFloatValue(path)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("negative percentage %v", value)
	}
	if value > 100 {
		// Some kernels report busy % scaled by 100.
		value = clamp(value/100, 0, 100)
	}
	return value, nil
}

func readMiB(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	valueStr := strings.TrimSpace(string(data))
	if valueStr == "" {
		return 0, errEmptyValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse uint: %w", err)
	}
	return float64(value / bytesPerMiB), nil
}

// readCurrentClock returns the active DPM level, marked with '*' by the driver.
func readCurrentClock(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "*") {
			continue
		}
		if clock, ok := extractClockMHz(line); ok {
			return clock, nil
		}
	}
	return 0, fmt.Errorf("no active level in %s", filepath.Base(path))
}

// debugInfo holds the values parsed from debugfs amdgpu_pm_info.
type debugInfo struct {
	gpuLoad *float64
	sclkMHz *float64
	mclkMHz *float64
	tempC   *float64
	powerW  *float64
}

func readDebugInfo(path string) debugInfo {
	data, err := os.ReadFile(path)
	if err != nil {
		return debugInfo{}
	}
	return parseDebugInfo(data)
}

func parseDebugInfo(data []byte) debugInfo {
	info := debugInfo{}
	set := func(dst **float64, line string) {
		if val, ok := extractFirstFloat(line); ok {
			*dst = &val
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		switch {
		case strings.HasPrefix(lower, "gpu load"):
			set(&info.gpuLoad, line)
		case strings.HasPrefix(lower, "sclk"), strings.HasPrefix(lower, "average gfxclk"):
			set(&info.sclkMHz, line)
		case strings.HasPrefix(lower, "mclk"), strings.HasPrefix(lower, "average memclk"):
			set(&info.mclkMHz, line)
		case strings.HasPrefix(lower, "gpu temperature"):
			set(&info.tempC, line)
		case strings.HasPrefix(lower, "gpu power"), strings.HasPrefix(lower, "power:"):
			set(&info.powerW, line)
		case strings.Contains(lower, "gpu load") && info.gpuLoad == nil:
			set(&info.gpuLoad, line)
		}
	}
	return info
}

// detectHwmon returns the first hwmon directory of a device, or "".
func detectHwmon(devicePath string) string {
	hwmonRoot := filepath.Join(devicePath, "hwmon")
	entries, err := os.ReadDir(hwmonRoot)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Type()&os.ModeSymlink != 0 {
			return filepath.Join(hwmonRoot, entry.Name())
		}
	}
	return ""
}

// findLabeledInput locates the <prefix>N_input file whose <prefix>N_label
// matches label, e.g. temp2_input for label "junction".
func findLabeledInput(hwmonPath, prefix, label string) string {
	if hwmonPath == "" {
		return ""
	}
	labels, err := filepath.Glob(filepath.Join(hwmonPath, prefix+"*_label"))
	if err != nil {
		return ""
	}
	for _, labelPath := range labels {
		data, err := os.ReadFile(labelPath)
		if err != nil {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(string(data)), label) {
			continue
		}
		return strings.TrimSuffix(labelPath, "_label") + "_input"
	}
	return ""
}

// hasLabels reports whether any <prefix>N_label file exists in the hwmon directory.
func hasLabels(hwmonPath, prefix string) bool {
	if hwmonPath == "" {
		return false
	}
	labels, err := filepath.Glob(filepath.Join(hwmonPath, prefix+"*_label"))
	return err == nil && len(labels) > 0
}

func extractClockMHz(line string) (float64, bool) {
	line = strings.TrimSpace(strings.TrimSuffix(line, "*"))
	for _, field := range strings.Fields(line) {
		field = strings.ToLower(strings.TrimSuffix(field, "*"))
		valueStr, ok := strings.CutSuffix(field, "mhz")
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			continue
		}
		return value, true
	}
	return 0, false
}

func extractFirstFloat(line string) (float64, bool) {
	var buf strings.Builder
	var seen bool
	for _, r := range line {
		if unicode.IsDigit(r) || r == '.' || (r == '-' && !seen) {
			buf.WriteRune(r)
			seen = true
			continue
		}
		if seen {
			// Thousands separators.
			if r == ',' {
				continue
			}
			break
		}
	}
	if !seen {
		return 0, false
	}
	value, err := strconv.ParseFloat(buf.String(), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func clamp(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}
