package reactor

import (
	"net"
	"net/http"
	"testing"
	"time"
)

func TestDateCacheFormatsAsHTTPDate(t *testing.T) {
	dc := NewDateCache()
	v := dc.Get()
	if _, err := http.ParseTime(v); err != nil {
		t.Fatalf("Get() = %q is not a valid HTTP date: %v", v, err)
	}
}

func TestDateCacheReturnsSameValueWithinTheSameSecond(t *testing.T) {
	dc := NewDateCache()
	a := dc.Get()
	b := dc.Get()
	if a != b {
		t.Errorf("Get() changed between back-to-back calls: %q vs %q", a, b)
	}
}

func TestWorkerRunsEnqueuedConnections(t *testing.T) {
	done := make(chan struct{}, 3)
	w := New(0, func(c net.Conn) {
		done <- struct{}{}
	})
	go w.Run()

	for i := 0; i < 3; i++ {
		w.Enqueue(nil)
	}

	timeout := time.After(2 * time.Second)
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-timeout:
			t.Fatalf("handler did not run for all 3 enqueued connections")
		}
	}
	w.Shutdown()
}
