// Package reactor implements the per-worker event loop that dispatches
// accepted connections to goroutines: a worker is the Go reshaping of the
// original's single-threaded libev loop plus its mutex-guarded FIFO queue
// and ev_async wake handle, fanned out over Go's scheduler instead of one
// OS thread per worker.
package reactor

import (
	"net"
	"sync"
)

// Worker owns a FIFO of accepted connections and a goroutine pool that
// drains it. Handoff from AcceptDispatcher is by net.Conn rather than raw
// fd, since Go's net package does not expose descriptors for ordinary use.
type Worker struct {
	id     int
	handle func(net.Conn)

	mu    sync.Mutex
	queue []net.Conn
	wake  chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
}

// New builds a Worker that invokes handle for each connection it is given,
// each on its own goroutine.
func New(id int, handle func(net.Conn)) *Worker {
	return &Worker{
		id:     id,
		handle: handle,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue hands conn to the worker and wakes its loop if it is idle.
func (w *Worker) Enqueue(conn net.Conn) {
	w.mu.Lock()
	w.queue = append(w.queue, conn)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) dequeue() (net.Conn, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return nil, false
	}
	conn := w.queue[0]
	w.queue = w.queue[1:]
	return conn, true
}

// Run drives the worker's loop until Shutdown is called, then drains any
// goroutines it has already spawned before returning.
func (w *Worker) Run() {
	for {
		select {
		case <-w.wake:
			for {
				conn, ok := w.dequeue()
				if !ok {
					break
				}
				w.wg.Add(1)
				go func(c net.Conn) {
					defer w.wg.Done()
					w.handle(c)
				}(conn)
			}
		case <-w.done:
			w.wg.Wait()
			return
		}
	}
}

// Shutdown signals the worker's loop to stop and returns without waiting.
// Run then waits for the handlers it has already started before it
// returns; connections still in the queue at that point are not handled.
func (w *Worker) Shutdown() {
	close(w.done)
}
