package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetDefaultsVersion(t *testing.T) {
	t.Cleanup(func() { Set(Info{}) })

	Set(Info{Commit: "abc123"})
	got := Current()
	assert.Equal(t, "dev", got.Version)
	assert.Equal(t, "amdgpu-querer dev (commit abc123, built unknown)", got.String())
}
