// Package v4l discovers Video4Linux cameras through sysfs.
package v4l

import (
	"context"
	"io/fs"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/mediadevices"
)

const componentName = "v4l"

// SysfsRoot is where the kernel lists video devices.
const SysfsRoot = "/sys/class/video4linux"

// Cameras enumerates video capture devices. Frame capture is not implemented,
// so Capture always fails and the engine carries on with audio only.
type Cameras struct {
	sysfs fs.FS
}

// New reads from the live sysfs tree.
func New() *Cameras {
	return &Cameras{sysfs: os.DirFS(SysfsRoot)}
}

// NewFromFS reads from an arbitrary tree laid out like /sys/class/video4linux.
func NewFromFS(fsys fs.FS) *Cameras {
	return &Cameras{sysfs: fsys}
}

// EnumerateDevices lists one entry per camera. Secondary nodes of the same
// camera, such as metadata nodes, have a non-zero index and are skipped.
// A missing sysfs tree means no cameras.
func (c *Cameras) EnumerateDevices(ctx context.Context) ([]mediadevices.EnumeratedDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(c.sysfs, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudioDevice).
			Context("operation", "enumerate_cameras").
			Build()
	}

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "video") {
			names = append(names, e.Name())
		}
	}
	slices.SortFunc(names, func(a, b string) int { return nodeNumber(a) - nodeNumber(b) })

	out := make([]mediadevices.EnumeratedDevice, 0, len(names))
	for _, name := range names {
		if idx, ok := c.attr(name, "index"); ok && idx != "0" {
			continue
		}
		label, _ := c.attr(name, "name")
		out = append(out, mediadevices.EnumeratedDevice{
			ID:    "/dev/" + name,
			Label: label,
			Class: mediadevices.VideoInput,
		})
	}
	return out, nil
}

func (c *Cameras) attr(node, attr string) (string, bool) {
	b, err := fs.ReadFile(c.sysfs, path.Join(node, attr))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(b)), true
}

func nodeNumber(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(name, "video"))
	if err != nil {
		return -1
	}
	return n
}

// Capture reports video capture as unavailable.
func (c *Cameras) Capture(_ context.Context, cs mediadevices.ConstraintSet) ([]mediadevices.Track, error) {
	return nil, errors.Newf("video capture is not available").
		Component(componentName).
		Category(errors.CategoryCapture).
		Context("kinds", cs.String()).
		Build()
}
