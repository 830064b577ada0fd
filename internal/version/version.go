// Package version holds the build metadata stamped in by the linker.
package version

import (
	"fmt"
	"sync"
)

// Info describes a build of amdgpu-querer.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
}

// String renders the metadata as printed by the version subcommand.
func (i Info) String() string {
	return fmt.Sprintf("amdgpu-querer %s (commit %s, built %s)", i.Version, orUnknown(i.Commit), orUnknown(i.BuildTime))
}

var (
	info   = Info{Version: "dev"}
	infoMu sync.RWMutex
)

// Set records the build metadata. An empty version is reported as "dev".
func Set(v Info) {
	infoMu.Lock()
	defer infoMu.Unlock()

	if v.Version == "" {
		v.Version = "dev"
	}
	info = v
}

// Current returns the recorded build metadata.
func Current() Info {
	infoMu.RLock()
	defer infoMu.RUnlock()
	return info
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
