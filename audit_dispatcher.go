package goMormot

import (
	"context"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// auditDispatcher hands events to the sink on a single goroutine so login
// and logout never wait on a slow sink unless DropIfFull is off.
type auditDispatcher struct {
	dropIfFull bool
	sink       AuditSink
	logger     logrus.FieldLogger

	queue   chan AuditEvent
	stop    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool

	dropped  atomic.Uint64
	panicked atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger logrus.FieldLogger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	d := &auditDispatcher{
		dropIfFull: cfg.DropIfFull,
		sink:       sink,
		logger:     logger.WithField("component", "audit"),
		queue:      make(chan AuditEvent, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
	}

	d.stopped.Add(1)
	go d.loop()
	return d
}

func (d *auditDispatcher) loop() {
	defer d.stopped.Done()

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *auditDispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver passes ev to the sink with the event's request ID in the context.
// A panicking sink loses that event only.
func (d *auditDispatcher) deliver(ev AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			d.logger.WithFields(logrus.Fields{
				"event_type": ev.EventType,
				"event_id":   ev.ID,
				"panic":      r,
			}).Error("audit sink panicked")
		}
	}()

	ctx := context.Background()
	if ev.RequestID != "" {
		ctx = WithRequestID(ctx, ev.RequestID)
	}
	d.sink.Emit(ctx, ev)
}

// Emit queues ev. With DropIfFull a full buffer drops the event and
// counts it; otherwise Emit blocks until there is room or ctx ends.
func (d *auditDispatcher) Emit(ctx context.Context, ev AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.noteDrop(ev)
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// noteDrop logs the 1st, 2nd, 4th, 8th... dropped event.
func (d *auditDispatcher) noteDrop(ev AuditEvent) {
	n := d.dropped.Add(1)
	if bits.OnesCount64(n) != 1 {
		return
	}
	d.logger.WithFields(logrus.Fields{
		"event_type": ev.EventType,
		"dropped":    n,
	}).Warn("audit buffer full, dropping events")
}

// Close stops accepting events, drains the buffer into the sink and waits.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.stopped.Wait()
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *auditDispatcher) SinkPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panicked.Load()
}
