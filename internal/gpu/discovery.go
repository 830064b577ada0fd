// Package gpu enumerates AMD graphics devices exposed by the DRM subsystem.
package gpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	// DRMClassPath is the DRM class directory relative to the sysfs root.
	DRMClassPath = "class/drm"

	amdVendorID = "1002"
)

// ErrNoDRM is returned when the sysfs root has no DRM class directory.
var ErrNoDRM = errors.New("drm class directory missing")

// Info describes a single AMD GPU discovered via sysfs.
type Info struct {
	ID         string
	Index      int
	PCI        string
	PCIID      string
	Name       string
	RenderNode string
}

// Options tunes discovery.
type Options struct {
	// ResolveNames looks marketing names up in the PCI ID database.
	ResolveNames bool
}

// Discover enumerates AMD DRM cards under the sysfs root, ordered by card index.
// Cards driven by other vendors are skipped.
func Discover(root string, opts Options, logger *slog.Logger) ([]Info, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sysRoot, err := os.OpenRoot(root)
	if err != nil {
		return nil, fmt.Errorf("open sysfs root: %w", err)
	}
	defer sysRoot.Close()

	entries, err := fs.ReadDir(sysRoot.FS(), DRMClassPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoDRM, filepath.Join(root, DRMClassPath))
		}
		return nil, fmt.Errorf("read drm class dir: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		name := entry.Name()
		index, ok := CardIndex(name)
		if !ok {
			continue
		}
		if !entry.IsDir() && entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		deviceRoot, err := sysRoot.OpenRoot(filepath.Join(DRMClassPath, name, "device"))
		if err != nil {
			logger.Debug("card has no device directory", "card", name, "err", err)
			continue
		}
		info, err := loadCardInfo(name, deviceRoot, opts)
		if cerr := deviceRoot.Close(); cerr != nil {
			logger.Debug("failed to close device root", "card", name, "err", cerr)
		}
		if err != nil {
			logger.Debug("skipping card", "card", name, "err", err)
			continue
		}
		info.Index = index
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Index < infos[j].Index
	})
	return infos, nil
}

// CardIndex parses the numeric suffix of a primary DRM node name such as
// "card1". Connector nodes ("card1-DP-1") and render nodes are rejected.
func CardIndex(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, "card")
	if !ok || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return index, true
}

func loadCardInfo(cardID string, deviceRoot *os.Root, opts Options) (Info, error) {
	info := Info{ID: cardID}

	var subVendor, subDevice string
	if data, err := deviceRoot.ReadFile("uevent"); err == nil {
		values := parseUevent(string(data))
		info.PCI = values["PCI_SLOT_NAME"]
		info.PCIID = values["PCI_ID"]
		if sub, ok := values["PCI_SUBSYS_ID"]; ok {
			subVendor, subDevice, _ = strings.Cut(sub, ":")
		}
		info.Name = values["PCI_ID_NAME"]
	}

	if info.PCIID == "" {
		vendor, verr := readTrim(deviceRoot, "vendor")
		device, derr := readTrim(deviceRoot, "device")
		if verr == nil && derr == nil {
			info.PCIID = normalizePCIID(vendor) + ":" + normalizePCIID(device)
		}
	}

	vendorID, deviceID := splitPCIIdentifier(info.PCIID)
	vendorID, deviceID = normalizePCIID(vendorID), normalizePCIID(deviceID)
	if vendorID != amdVendorID {
		return Info{}, fmt.Errorf("vendor %q is not AMD", vendorID)
	}
	info.PCIID = vendorID + ":" + deviceID

	if info.Name == "" {
		info.Name, _ = readTrim(deviceRoot, "product_name")
	}
	if subVendor == "" {
		subVendor, _ = readTrim(deviceRoot, "subsystem_vendor")
	}
	if subDevice == "" {
		subDevice, _ = readTrim(deviceRoot, "subsystem_device")
	}

	if opts.ResolveNames {
		resolved := lookupGPUName(vendorID, deviceID, subVendor, subDevice)
		if shouldUseResolvedName(info.Name, resolved) {
			info.Name = resolved
		}
	}
	if info.Name == "" {
		info.Name = "AMD GPU " + info.PCIID
	}

	info.RenderNode = findRenderNode(deviceRoot)
	return info, nil
}

func findRenderNode(deviceRoot *os.Root) string {
	entries, err := fs.ReadDir(deviceRoot.FS(), "drm")
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "renderD") {
			return filepath.Join("/dev/dri", entry.Name())
		}
	}
	return ""
}

func parseUevent(data string) map[string]string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return values
}

func readTrim(root *os.Root, name string) (string, error) {
	data, err := root.ReadFile(name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
