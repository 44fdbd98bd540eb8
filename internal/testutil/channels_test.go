package testutil

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	assert.Equal(t, 7, Receive(t, ch, ShortTestTimeout, "value"))
}

func TestWaitForClose(t *testing.T) {
	ch := make(chan string, 2)
	ch <- "queued"
	close(ch)
	WaitForClose(t, ch, ShortTestTimeout, "close")
}

func TestRunAsync(t *testing.T) {
	release := make(chan struct{})
	wait := RunAsync(t, ShortTestTimeout, func() error {
		<-release
		return errors.New("stopped")
	})
	close(release)
	assert.EqualError(t, wait(), "stopped")
}

func TestRunAsyncFast(t *testing.T) {
	wait := RunAsync(t, ShortTestTimeout, func() error {
		time.Sleep(time.Millisecond)
		return nil
	})
	assert.NoError(t, wait())
}
