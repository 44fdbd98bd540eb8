package conf

import (
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
)

// DefaultConfigPaths lists where config.yaml is searched, in order.
func DefaultConfigPaths() []string {
	paths := []string{".", filepath.Join(xdg.ConfigHome, "libwebphone")}
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/libwebphone")
	}
	return paths
}
