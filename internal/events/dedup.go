package events

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// KeyFunc derives the suppression key for a signal. An empty key disables suppression.
type KeyFunc func(Signal) string

// DedupConsumer wraps a consumer and drops repeats of the same signal key
// seen within the TTL window. Hot-plug storms tend to repeat identical capture
// errors; downstream reporters only need the first one.
type DedupConsumer struct {
	inner      Consumer
	seen       *cache.Cache
	ttl        time.Duration
	key        KeyFunc
	suppressed atomic.Uint64
}

// NewDedupConsumer returns a consumer that forwards the first occurrence of each key per ttl.
func NewDedupConsumer(inner Consumer, ttl time.Duration, key KeyFunc) *DedupConsumer {
	if key == nil {
		key = DefaultKey
	}
	return &DedupConsumer{
		inner: inner,
		seen:  cache.New(ttl, 2*ttl),
		ttl:   ttl,
		key:   key,
	}
}

// DefaultKey keys a signal by its name and the text of an error payload.
func DefaultKey(sig Signal) string {
	if err, ok := sig.Payload.(error); ok {
		return sig.Name + "|" + err.Error()
	}
	return sig.Name + "|" + fmt.Sprint(sig.Payload)
}

func (d *DedupConsumer) Name() string { return d.inner.Name() }

func (d *DedupConsumer) ProcessSignal(sig Signal) error {
	k := d.key(sig)
	if k != "" {
		if err := d.seen.Add(k, struct{}{}, d.ttl); err != nil {
			d.suppressed.Add(1)
			return nil
		}
	}
	return d.inner.ProcessSignal(sig)
}

// Suppressed returns how many signals were dropped as duplicates
func (d *DedupConsumer) Suppressed() uint64 {
	return d.suppressed.Load()
}
