package authcore

import (
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples the hot path from the sink: events are queued on
// a buffered channel and delivered by a single goroutine. When the buffer is
// full the event is dropped (counted) or delivered synchronously, per
// configuration. The events channel is never closed, so dispatching
// concurrently with close is safe; late events are counted as dropped.
type auditDispatcher struct {
	sink       AuditSink
	events     chan AuditEvent
	dropIfFull bool
	dropped    atomic.Uint64

	mu     sync.Mutex
	closed bool
	quit   chan struct{}
	done   chan struct{}
}

func newAuditDispatcher(sink AuditSink, bufferSize int, dropIfFull bool) *auditDispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}

	d := &auditDispatcher{
		sink:       sink,
		events:     make(chan AuditEvent, bufferSize),
		dropIfFull: dropIfFull,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.done)
	for {
		select {
		case event := <-d.events:
			d.sink.Record(event)
		case <-d.quit:
			// Drain what was queued before shutdown.
			for {
				select {
				case event := <-d.events:
					d.sink.Record(event)
				default:
					return
				}
			}
		}
	}
}

func (d *auditDispatcher) dispatch(event AuditEvent) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		d.dropped.Add(1)
		return
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.events <- event:
	case <-d.quit:
		d.dropped.Add(1)
	}
}

// droppedCount reports how many events were discarded due to backpressure
// or shutdown.
func (d *auditDispatcher) droppedCount() uint64 {
	return d.dropped.Load()
}

// close drains queued events and stops the delivery goroutine. Safe to call
// more than once and concurrently with dispatch.
func (d *auditDispatcher) close() {
	d.mu.Lock()
	alreadyClosed := d.closed
	d.closed = true
	d.mu.Unlock()

	if !alreadyClosed {
		close(d.quit)
	}
	<-d.done
}
