package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ringneck/libwebphone/internal/logger"
)

// Config holds bus configuration
type Config struct {
	BufferSize int
	Workers    int
}

// DefaultConfig returns the default bus configuration.
// A single worker keeps consumers seeing signals in publish order.
func DefaultConfig() *Config {
	return &Config{
		BufferSize: 1024,
		Workers:    1,
	}
}

type subscriber struct {
	id uint64
	ch chan Signal
}

// Bus fans signals out to channel subscribers and registered consumers.
// Publish never blocks: full buffers drop the signal and count it.
type Bus struct {
	signalChan chan Signal
	workers    int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	mu          sync.RWMutex
	consumers   []Consumer
	subscribers []subscriber
	nextSubID   uint64

	stats Stats
	log   logger.Logger
}

// NewBus creates a bus and starts its workers. Call Shutdown to stop them.
func NewBus(cfg *Config, log logger.Logger) *Bus {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logger.Global().Module("events")
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		signalChan: make(chan Signal, cfg.BufferSize),
		workers:    cfg.Workers,
		ctx:        ctx,
		cancel:     cancel,
		log:        log,
	}

	b.running.Store(true)
	for i := range b.workers {
		b.wg.Add(1)
		go b.worker(i)
	}

	b.log.Debug("signal bus started",
		logger.Int("buffer_size", cfg.BufferSize),
		logger.Int("workers", cfg.Workers))
	return b
}

// RegisterConsumer adds a consumer; names must be unique
func (b *Bus) RegisterConsumer(consumer Consumer) error {
	if b == nil {
		return fmt.Errorf("signal bus not initialized")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}
	b.consumers = append(b.consumers, consumer)

	b.log.Info("registered signal consumer", logger.String("consumer", consumer.Name()))
	return nil
}

// Subscribe returns a channel receiving every signal published after the call
// and a function that unsubscribes and closes it. Signals are dropped for a
// subscriber whose buffer is full.
func (b *Bus) Subscribe(buffer int) (<-chan Signal, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	sub := subscriber{id: b.nextSubID, ch: make(chan Signal, buffer)}
	b.subscribers = append(b.subscribers, sub)

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subscribers {
				if s.id == sub.id {
					b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
					close(s.ch)
					return
				}
			}
		})
	}
}

// Publish emits a signal. It returns false if any recipient dropped it.
func (b *Bus) Publish(name string, payload any) bool {
	if b == nil || !b.running.Load() {
		return false
	}

	sig := Signal{Name: name, Payload: payload, Time: time.Now()}
	atomic.AddUint64(&b.stats.SignalsPublished, 1)
	delivered := true

	b.mu.RLock()
	for _, sub := range b.subscribers {
		select {
		case sub.ch <- sig:
		default:
			delivered = false
			atomic.AddUint64(&b.stats.SignalsDropped, 1)
		}
	}
	hasConsumers := len(b.consumers) > 0
	b.mu.RUnlock()

	if !hasConsumers {
		return delivered
	}

	select {
	case b.signalChan <- sig:
	default:
		delivered = false
		atomic.AddUint64(&b.stats.SignalsDropped, 1)
		b.log.Debug("signal dropped due to full buffer", logger.String("signal", name))
	}
	return delivered
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()
	log := b.log.With(logger.Int("worker_id", id))

	for {
		select {
		case <-b.ctx.Done():
			b.drain(log)
			return
		case sig := <-b.signalChan:
			b.process(sig, log)
		}
	}
}

// drain hands signals still queued at shutdown to the consumers
func (b *Bus) drain(log logger.Logger) {
	for {
		select {
		case sig := <-b.signalChan:
			b.process(sig, log)
		default:
			return
		}
	}
}

func (b *Bus) process(sig Signal, log logger.Logger) {
	b.mu.RLock()
	consumers := make([]Consumer, len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.RUnlock()

	for _, consumer := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&b.stats.ConsumerErrors, 1)
					log.Error("consumer panicked",
						logger.String("consumer", consumer.Name()),
						logger.String("signal", sig.Name),
						logger.Any("panic", r))
				}
			}()

			if err := consumer.ProcessSignal(sig); err != nil {
				atomic.AddUint64(&b.stats.ConsumerErrors, 1)
				log.Warn("consumer error",
					logger.String("consumer", consumer.Name()),
					logger.String("signal", sig.Name),
					logger.Error(err))
				return
			}
			atomic.AddUint64(&b.stats.SignalsProcessed, 1)
		}()
	}
}

// Shutdown stops accepting signals, lets workers drain the queue and closes subscriber channels.
func (b *Bus) Shutdown(timeout time.Duration) error {
	if b == nil || !b.running.Swap(false) {
		return nil
	}

	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("signal bus shutdown timeout exceeded")
	}

	b.mu.Lock()
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = nil
	b.mu.Unlock()

	if err != nil {
		b.log.Warn("signal bus shutdown timeout exceeded", logger.Duration("timeout", timeout))
	}
	return err
}

// GetStats returns current bus statistics
func (b *Bus) GetStats() Stats {
	if b == nil {
		return Stats{}
	}
	return Stats{
		SignalsPublished: atomic.LoadUint64(&b.stats.SignalsPublished),
		SignalsProcessed: atomic.LoadUint64(&b.stats.SignalsProcessed),
		SignalsDropped:   atomic.LoadUint64(&b.stats.SignalsDropped),
		ConsumerErrors:   atomic.LoadUint64(&b.stats.ConsumerErrors),
	}
}
