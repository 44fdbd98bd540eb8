// Package hotplug turns device node churn into device refreshes.
package hotplug

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
)

const componentName = "hotplug"

// Refresher re-enumerates devices. The media devices Manager implements it.
type Refresher interface {
	RefreshAvailableDevices(ctx context.Context) error
}

// Config controls which directories are watched and how often refreshes may run.
type Config struct {
	Paths    []string
	Debounce time.Duration
	// RatePerSecond caps refreshes; bursts of plug events collapse into one.
	RatePerSecond float64
}

// DefaultConfig watches /dev and /dev/snd.
func DefaultConfig() Config {
	return Config{
		Paths:         []string{"/dev", "/dev/snd"},
		Debounce:      500 * time.Millisecond,
		RatePerSecond: 2,
	}
}

// Watcher calls a Refresher after device nodes settle.
type Watcher struct {
	cfg     Config
	target  Refresher
	limiter *rate.Limiter
	log     logger.Logger

	refreshes atomic.Uint64
	failures  atomic.Uint64
}

// New builds a watcher. Zero config fields take their defaults.
func New(cfg Config, target Refresher, log logger.Logger) *Watcher {
	def := DefaultConfig()
	if len(cfg.Paths) == 0 {
		cfg.Paths = def.Paths
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if log == nil {
		log = logger.Global().Module(componentName)
	}
	return &Watcher{
		cfg:     cfg,
		target:  target,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		log:     log,
	}
}

// Refreshes returns how many refreshes ran and how many of them failed.
func (w *Watcher) Refreshes() (total, failed uint64) {
	return w.refreshes.Load(), w.failures.Load()
}

// Run watches until ctx is cancelled. Paths that cannot be watched are
// skipped; if none can be watched Run fails immediately.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("operation", "new_watcher").
			Build()
	}
	defer func() { _ = fw.Close() }()

	watched := 0
	for _, p := range w.cfg.Paths {
		if err := fw.Add(p); err != nil {
			w.log.Warn("cannot watch device path", logger.String("path", p), logger.Error(err))
			continue
		}
		watched++
	}
	if watched == 0 {
		return errors.Newf("no device path could be watched").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Context("paths", w.cfg.Paths).
			Build()
	}
	w.log.Info("watching for device changes",
		logger.Int("paths", watched),
		logger.Duration("debounce", w.cfg.Debounce))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("device watcher stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.log.Trace("device node changed", logger.String("name", ev.Name), logger.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				timer.Reset(w.cfg.Debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("device watcher error", logger.Error(err))

		case <-fire:
			fire = nil
			w.refresh(ctx)
		}
	}
}

// relevant keeps node creation, removal and permission changes. udev
// usually fixes permissions right after creating a node.
func relevant(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) ||
		ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Chmod)
}

func (w *Watcher) refresh(ctx context.Context) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}
	w.refreshes.Add(1)
	start := time.Now()
	if err := w.target.RefreshAvailableDevices(ctx); err != nil {
		w.failures.Add(1)
		w.log.Warn("device refresh failed", logger.Error(err))
		return
	}
	w.log.Debug("devices refreshed", logger.Duration("took", time.Since(start)))
}
