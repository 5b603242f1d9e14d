package goroutine

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAssertNoLeaks_NoLeak(t *testing.T) {
	AssertNoLeaks(t)

	done := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(done)
	}()
	<-done
}

func TestWaitForGoroutineCount(t *testing.T) {
	before := runtime.NumGoroutine()
	stop := make(chan struct{})
	go func() { <-stop }()

	assert.False(t, WaitForGoroutineCount(before, 50*time.Millisecond, 10*time.Millisecond))

	close(stop)
	assert.True(t, WaitForGoroutineCount(before, time.Second, 10*time.Millisecond))
}
