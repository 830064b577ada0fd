package gpu

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaypipes/pcidb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	card10 := filepath.Join(root, "class", "drm", "card10", "device")
	writeFile(t, filepath.Join(card10, "uevent"), "DRIVER=amdgpu\nPCI_SLOT_NAME=0000:0b:00.0\nPCI_ID=1002:731F\n")
	writeFile(t, filepath.Join(card10, "product_name"), "AMD Radeon Pro Test\n")
	mkdir(t, filepath.Join(card10, "drm", "renderD129"))

	card2 := filepath.Join(root, "class", "drm", "card2", "device")
	writeFile(t, filepath.Join(card2, "uevent"), "DRIVER=amdgpu\nPCI_SLOT_NAME=0000:0a:00.0\nPCI_ID=1002:73DF\nPCI_ID_NAME=AMD Radeon RX 6800\n")
	mkdir(t, filepath.Join(card2, "drm", "renderD128"))

	// Connector nodes and other vendors are not GPUs of interest.
	mkdir(t, filepath.Join(root, "class", "drm", "card2-DP-1"))
	intel := filepath.Join(root, "class", "drm", "card0", "device")
	writeFile(t, filepath.Join(intel, "vendor"), "0x8086\n")
	writeFile(t, filepath.Join(intel, "device"), "0x4680\n")

	infos, err := Discover(root, Options{}, logger)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	first := infos[0]
	require.Equal(t, "card2", first.ID)
	assert.Equal(t, 2, first.Index)
	assert.Equal(t, "0000:0a:00.0", first.PCI)
	assert.Equal(t, "1002:73df", first.PCIID)
	assert.Equal(t, "AMD Radeon RX 6800", first.Name)
	assert.Equal(t, "/dev/dri/renderD128", first.RenderNode)

	second := infos[1]
	require.Equal(t, "card10", second.ID)
	assert.Equal(t, "AMD Radeon Pro Test", second.Name)
	assert.Equal(t, "/dev/dri/renderD129", second.RenderNode)
}

func TestDiscoverVendorFilesFallback(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	device := filepath.Join(root, "class", "drm", "card0", "device")
	writeFile(t, filepath.Join(device, "vendor"), "0x1002\n")
	writeFile(t, filepath.Join(device, "device"), "0x744c\n")

	infos, err := Discover(root, Options{}, nil)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "1002:744c", infos[0].PCIID)
	assert.Equal(t, "AMD GPU 1002:744c", infos[0].Name)
}

func TestDiscoverMissingDRMClass(t *testing.T) {
	t.Parallel()

	_, err := Discover(t.TempDir(), Options{}, nil)
	assert.ErrorIs(t, err, ErrNoDRM)
}

func TestDiscoverMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := Discover(filepath.Join(t.TempDir(), "absent"), Options{}, nil)
	assert.Error(t, err)
}

func TestDiscoverFollowsSymlinks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	classPath := filepath.Join(root, "class", "drm")
	mkdir(t, classPath)

	target := filepath.Join(root, "devices", "pci0000:00", "0000:00:01.0", "drm", "card0")
	deviceDir := filepath.Join(target, "device")
	writeFile(t, filepath.Join(deviceDir, "uevent"), "PCI_SLOT_NAME=0000:00:01.0\nPCI_ID=1002:73df\n")

	relTarget, err := filepath.Rel(classPath, target)
	require.NoError(t, err)
	require.NoError(t, os.Symlink(relTarget, filepath.Join(classPath, "card0")))

	infos, err := Discover(root, Options{}, nil)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "card0", infos[0].ID)
}

func TestDiscoverUsesPCIDatabase(t *testing.T) {
	t.Parallel()

	db, err := pcidb.New()
	if err != nil {
		t.Skipf("pcidb unavailable: %v", err)
	}
	product, ok := db.Products["100273bf"]
	if !ok || product == nil || product.Name == "" {
		t.Skip("pcidb missing product 1002:73bf")
	}

	root := t.TempDir()
	deviceDir := filepath.Join(root, "class", "drm", "card0", "device")
	writeFile(t, filepath.Join(deviceDir, "uevent"), "DRIVER=amdgpu\nPCI_SLOT_NAME=0000:00:01.0\nPCI_ID=1002:73BF\n")

	infos, err := Discover(root, Options{ResolveNames: true}, nil)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, product.Name, infos[0].Name)
}

func TestCardIndex(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		index int
		ok    bool
	}{
		"card0":      {0, true},
		"card12":     {12, true},
		"card1-DP-1": {0, false},
		"renderD128": {0, false},
		"card":       {0, false},
		"version":    {0, false},
	}
	for name, want := range cases {
		index, ok := CardIndex(name)
		assert.Equal(t, want.ok, ok, name)
		assert.Equal(t, want.index, index, name)
	}
}

func TestShouldUseResolvedName(t *testing.T) {
	t.Parallel()

	assert.False(t, shouldUseResolvedName("AMD Radeon RX 6800", "Navi 21"), "kernel-provided name wins")
	assert.True(t, shouldUseResolvedName("amdgpu", "Navi 21"), "driver name is replaced")
	assert.True(t, shouldUseResolvedName("0x73bf", "Navi 21"), "raw identifier is replaced")
	assert.False(t, shouldUseResolvedName("", ""), "empty resolution is ignored")
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	mkdir(t, filepath.Dir(path))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o750))
}
