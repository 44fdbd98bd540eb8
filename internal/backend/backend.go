// Package backend combines per-kind device backends into the single
// Enumerator and Capturer the media devices engine expects.
package backend

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/mediadevices"
)

const componentName = "backend"

// Enumerators lists the devices of every member, in member order.
type Enumerators []mediadevices.Enumerator

// EnumerateDevices queries all members concurrently. Any member failing fails the whole listing.
func (e Enumerators) EnumerateDevices(ctx context.Context) ([]mediadevices.EnumeratedDevice, error) {
	results := make([][]mediadevices.EnumeratedDevice, len(e))
	g, gctx := errgroup.WithContext(ctx)
	for i, enum := range e {
		g.Go(func() error {
			devices, err := enum.EnumerateDevices(gctx)
			results[i] = devices
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []mediadevices.EnumeratedDevice
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// Capturers routes each track kind to the capturer that owns it.
type Capturers map[mediadevices.TrackKind]mediadevices.Capturer

// Capture splits the request by kind and captures the kinds concurrently.
// The request succeeds or fails as a whole: tracks opened by kinds that
// succeeded are stopped again when another kind fails.
func (c Capturers) Capture(ctx context.Context, cs mediadevices.ConstraintSet) ([]mediadevices.Track, error) {
	kinds := cs.Kinds()
	for _, kind := range kinds {
		if _, ok := c[kind]; !ok {
			return nil, errors.Newf("no capturer for %s", kind).
				Component(componentName).
				Category(errors.CategoryCapture).
				Context("kind", kind.String()).
				Build()
		}
	}

	results := make([][]mediadevices.Track, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			got, err := c[kind].Capture(gctx, cs.Only(kind))
			results[i] = got
			return err
		})
	}
	err := g.Wait()

	var tracks []mediadevices.Track
	for _, r := range results {
		tracks = append(tracks, r...)
	}
	if err != nil {
		stopAll(tracks)
		return nil, err
	}
	return tracks, nil
}

func stopAll(tracks []mediadevices.Track) {
	for _, t := range tracks {
		t.Stop()
	}
}
