// Package stream delivers job events to clients over NDJSON, server-sent
// events or a websocket, and decodes those streams on the client side.
package stream

import (
	"context"
	"sync"

	"github.com/ZaguanLabs/lingoflow"
)

// Queue is an unbounded event buffer between a job and a slow consumer.
// Push never blocks, so the job loop is never held up by the network.
// The queue closes itself after a terminal event.
type Queue struct {
	mu     sync.Mutex
	items  []lingoflow.Event
	closed bool
	ready  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends ev. Events pushed after Close or after a terminal event are
// dropped.
func (q *Queue) Push(ev lingoflow.Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, ev)
	if ev.IsTerminal() {
		q.closed = true
	}
	q.mu.Unlock()
	q.signal()
}

// Emit returns Push as a lingoflow.EventFunc.
func (q *Queue) Emit() lingoflow.EventFunc {
	return q.Push
}

// Close stops accepting events. Buffered events can still be read.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Next returns the oldest buffered event, waiting for one if needed.
// ok is false once the queue is closed and drained.
func (q *Queue) Next(ctx context.Context) (ev lingoflow.Event, ok bool, err error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev = q.items[0]
			q.items[0] = lingoflow.Event{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, true, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return lingoflow.Event{}, false, nil
		}

		select {
		case <-ctx.Done():
			return lingoflow.Event{}, false, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// EventWriter writes one event frame to a client.
type EventWriter interface {
	WriteEvent(ev lingoflow.Event) error
}

// Pump drains q into w in order until a terminal event has been written,
// the queue is closed, or ctx is done.
func Pump(ctx context.Context, q *Queue, w EventWriter) error {
	for {
		ev, ok, err := q.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := w.WriteEvent(ev); err != nil {
			return err
		}
		if ev.IsTerminal() {
			return nil
		}
	}
}
