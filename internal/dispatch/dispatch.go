// Package dispatch hands each accepted connection to one of the server's
// reactor workers in round-robin order.
package dispatch

import (
	"net"
	"sync"

	"github.com/iridium2/h2d/internal/reactor"
)

// Dispatcher round-robins accepted connections across a fixed pool of
// workers. A single-worker pool degenerates to direct handoff.
type Dispatcher struct {
	workers []*reactor.Worker

	mu   sync.Mutex
	next int
}

// New builds a Dispatcher over workers. len(workers) must be >= 1.
func New(workers []*reactor.Worker) *Dispatcher {
	return &Dispatcher{workers: workers}
}

// Dispatch hands conn to the next worker in rotation.
func (d *Dispatcher) Dispatch(conn net.Conn) {
	if len(d.workers) == 1 {
		d.workers[0].Enqueue(conn)
		return
	}
	d.mu.Lock()
	w := d.workers[d.next]
	d.next = (d.next + 1) % len(d.workers)
	d.mu.Unlock()
	w.Enqueue(conn)
}
