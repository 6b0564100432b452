package protocol

import (
	"testing"
	"time"
)

func TestTickerProducesIncreasingNonces(t *testing.T) {
	var ticker Ticker
	ticker.Start(5 * time.Millisecond)
	defer ticker.Stop()

	var last uint64
	for i := 0; i < 3; i++ {
		select {
		case nonce := <-ticker.C:
			if nonce <= last {
				t.Fatalf("nonce did not increase: last=%d got=%d", last, nonce)
			}
			last = nonce
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for tick")
		}
	}
}

func TestTickerRestartDoesNotLeak(t *testing.T) {
	var ticker Ticker
	ticker.Start(5 * time.Millisecond)

	<-ticker.C

	// Restarting with a new interval must not leak the old goroutine or
	// panic on double-close.
	ticker.Start(5 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tick after restart")
	}
}
