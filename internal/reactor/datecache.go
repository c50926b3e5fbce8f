package reactor

import (
	"net/http"
	"sync"
	"time"
)

// DateCache holds the formatted value of the HTTP date header, refreshed
// at most once per second. Every response needs a date header but
// re-formatting time.Now() on each one is wasted work the original avoids
// by caching the formatted string across the whole process and only
// recomputing it when the wall-clock second ticks over.
type DateCache struct {
	mu         sync.RWMutex
	value      string
	lastSecond int64
}

// NewDateCache returns a DateCache primed with the current time.
func NewDateCache() *DateCache {
	dc := &DateCache{}
	dc.refresh(time.Now().UTC())
	return dc
}

// Get returns the cached HTTP date string, refreshing it first if the
// wall-clock second has advanced since the last call.
func (dc *DateCache) Get() string {
	now := time.Now().UTC()
	sec := now.Unix()

	dc.mu.RLock()
	if sec == dc.lastSecond {
		v := dc.value
		dc.mu.RUnlock()
		return v
	}
	dc.mu.RUnlock()

	dc.mu.Lock()
	defer dc.mu.Unlock()
	if sec != dc.lastSecond {
		dc.refresh(now)
	}
	return dc.value
}

func (dc *DateCache) refresh(now time.Time) {
	dc.lastSecond = now.Unix()
	dc.value = now.Format(http.TimeFormat)
}
