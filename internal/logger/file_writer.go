package logger

import (
	"bufio"
	"os"
	"sync"
	"time"

	"github.com/ringneck/libwebphone/internal/errors"
)

const (
	defaultFileBufferSize    = 32 * 1024
	defaultFileFlushInterval = 2 * time.Second
	logFilePermissions       = 0o600
)

// bufferedFileWriter is a mutex-protected bufio.Writer over a log file that
// flushes on a timer so records reach disk without a syscall per record.
type bufferedFileWriter struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	path   string
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

func newBufferedFileWriter(path string) (*bufferedFileWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions)
	if err != nil {
		return nil, errors.New(err).
			Component("logger").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	w := &bufferedFileWriter{
		file: f,
		buf:  bufio.NewWriterSize(f, defaultFileBufferSize),
		path: path,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.flushLoop()
	return w, nil
}

func (w *bufferedFileWriter) flushLoop() {
	defer close(w.done)
	ticker := time.NewTicker(defaultFileFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = w.Flush()
		case <-w.stop:
			return
		}
	}
}

func (w *bufferedFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, os.ErrClosed
	}
	return w.buf.Write(p)
}

// Flush pushes buffered records to the OS
func (w *bufferedFileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.buf.Flush()
}

// Close flushes, syncs and closes the file. It is safe to call more than once.
func (w *bufferedFileWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.stop)
	flushErr := w.buf.Flush()
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.mu.Unlock()

	<-w.done
	return errors.Join(flushErr, syncErr, closeErr)
}
