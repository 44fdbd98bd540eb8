package audiograph

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/smallnest/ringbuffer"
)

const bytesPerSample = 4

// sampleFIFO stores float32 samples in a byte ring buffer. When full, the
// oldest samples are discarded so writers never block the render path.
type sampleFIFO struct {
	rb      *ringbuffer.RingBuffer
	scratch []byte
}

func newSampleFIFO(capacitySamples int) *sampleFIFO {
	return &sampleFIFO{rb: ringbuffer.New(capacitySamples * bytesPerSample)}
}

func (f *sampleFIFO) bytes(n int) []byte {
	if cap(f.scratch) < n {
		f.scratch = make([]byte, n)
	}
	return f.scratch[:n]
}

// write appends samples, dropping the oldest data if there is not enough room.
func (f *sampleFIFO) write(samples []float32) {
	need := len(samples) * bytesPerSample
	if need > f.rb.Capacity() {
		samples = samples[len(samples)-f.rb.Capacity()/bytesPerSample:]
		need = len(samples) * bytesPerSample
	}
	if free := f.rb.Free(); free < need {
		discard := f.bytes(need - free)
		_, _ = f.rb.Read(discard)
	}

	buf := f.bytes(need)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*bytesPerSample:], math.Float32bits(s))
	}
	_, _ = f.rb.Write(buf)
}

// writeSilence appends n zero samples.
func (f *sampleFIFO) writeSilence(n int) {
	zeros := make([]float32, n)
	f.write(zeros)
}

// read fills dst with up to len(dst) samples and returns how many were read.
// Unfilled positions are zeroed.
func (f *sampleFIFO) read(dst []float32) int {
	avail := f.rb.Length() / bytesPerSample
	n := min(avail, len(dst))
	if n > 0 {
		buf := f.bytes(n * bytesPerSample)
		read, _ := f.rb.Read(buf)
		n = read / bytesPerSample
		for i := range n {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*bytesPerSample:]))
		}
	}
	clear(dst[n:])
	return n
}

func (f *sampleFIFO) length() int {
	return f.rb.Length() / bytesPerSample
}

func (f *sampleFIFO) reset() {
	f.rb.Reset()
}

// delayLine returns each sample written to it delaySamples later.
type delayLine struct {
	fifo  *sampleFIFO
	delay int
}

func newDelayLine(delaySamples, blockSamples int) *delayLine {
	d := &delayLine{
		fifo:  newSampleFIFO(delaySamples + 2*blockSamples),
		delay: delaySamples,
	}
	d.fifo.writeSilence(delaySamples)
	return d
}

// process pushes in and pulls the same number of delayed samples into out.
func (d *delayLine) process(in, out []float32) {
	d.fifo.write(in)
	d.fifo.read(out[:len(in)])
}

// reset clears buffered audio and restores the initial silence.
func (d *delayLine) reset() {
	d.fifo.reset()
	d.fifo.writeSilence(d.delay)
}

// SampleQueue is a bounded mono sample buffer shared between a device
// callback that writes and a reader on another goroutine. It drops the
// oldest samples when full and implements Source.
type SampleQueue struct {
	mu   sync.Mutex
	fifo *sampleFIFO
}

// NewSampleQueue returns a queue holding at most capacity samples.
func NewSampleQueue(capacity int) *SampleQueue {
	return &SampleQueue{fifo: newSampleFIFO(capacity)}
}

// Write appends samples.
func (q *SampleQueue) Write(samples []float32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fifo.write(samples)
}

// ReadSamples drains up to len(dst) samples, zero filling the rest.
func (q *SampleQueue) ReadSamples(dst []float32) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fifo.read(dst)
}

// Len returns the number of buffered samples.
func (q *SampleQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fifo.length()
}

// Reset discards buffered samples.
func (q *SampleQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fifo.reset()
}
