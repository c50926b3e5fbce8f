package dispatch

import (
	"net"
	"testing"
	"time"

	"github.com/iridium2/h2d/internal/reactor"
)

func TestDispatchRoundRobinsAcrossWorkers(t *testing.T) {
	hits := make(chan int, 6)
	workers := make([]*reactor.Worker, 3)
	for i := range workers {
		id := i
		workers[i] = reactor.New(id, func(c net.Conn) { hits <- id })
		go workers[i].Run()
	}
	defer func() {
		for _, w := range workers {
			w.Shutdown()
		}
	}()

	d := New(workers)
	for i := 0; i < 6; i++ {
		d.Dispatch(nil)
	}

	seen := make(map[int]int)
	timeout := time.After(2 * time.Second)
	for i := 0; i < 6; i++ {
		select {
		case id := <-hits:
			seen[id]++
		case <-timeout:
			t.Fatalf("did not observe all 6 dispatched connections")
		}
	}
	for i := 0; i < 3; i++ {
		if seen[i] != 2 {
			t.Errorf("worker %d handled %d connections, want 2", i, seen[i])
		}
	}
}
