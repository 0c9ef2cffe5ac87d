// Package publisher serializes a run's progress events onto streaming
// transports: strictly increasing gapless sequence numbers, a bounded
// trailing buffer for reconnect-and-replay, and caller liveness probes.
package publisher

import (
	"errors"
	"sync"
	"time"

	"github.com/framelens/orchestrator/internal/domain"
)

// ErrClosed is returned when publishing to a terminated run's publisher.
var ErrClosed = errors.New("publisher closed")

const subscriberBuffer = 64

// Probe reports whether one attached transport still has a live caller.
type Probe func() bool

type subscriber struct {
	ch    chan domain.ProgressEvent
	probe Probe
}

// Publisher is the per-run event log and fan-out point. One publisher
// exists per run and dies with it (plus a grace window for replay).
type Publisher struct {
	mu       sync.Mutex
	runID    string
	nextSeq  int64
	buf      []domain.ProgressEvent
	maxBuf   int
	subs     map[int]*subscriber
	nextSub  int
	attached bool // a transport subscribed at least once
	closed   bool
	closedAt time.Time
}

// New creates a publisher for one run with a bounded trailing buffer.
func New(runID string, bufferSize int) *Publisher {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Publisher{
		runID:   runID,
		nextSeq: 1,
		maxBuf:  bufferSize,
		subs:    make(map[int]*subscriber),
	}
}

// RunID returns the run this publisher serves.
func (p *Publisher) RunID() string {
	return p.runID
}

// Publish assigns the next sequence number, buffers the event and fans it
// out. Subscribers that cannot keep up are dropped rather than allowed to
// stall the pipeline.
func (p *Publisher) Publish(event domain.ProgressEvent) error {
	_, err := p.Emit(event)
	return err
}

// Emit is Publish, returning the event as delivered (sequence number and
// timestamp stamped).
func (p *Publisher) Emit(event domain.ProgressEvent) (domain.ProgressEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ProgressEvent{}, ErrClosed
	}

	event.Seq = p.nextSeq
	p.nextSeq++
	if event.Ts == 0 {
		event.Ts = time.Now().UnixMilli()
	}

	p.buf = append(p.buf, event)
	if len(p.buf) > p.maxBuf {
		p.buf = p.buf[len(p.buf)-p.maxBuf:]
	}

	for id, sub := range p.subs {
		select {
		case sub.ch <- event:
		default:
			close(sub.ch)
			delete(p.subs, id)
		}
	}
	return event, nil
}

// Connected reports caller liveness. Before any transport attaches the
// caller is assumed present (the submitting request is still in flight);
// once a transport has attached, at least one live probe is required.
// Detection is poll-based, so a disconnect surfaces at the next check
// point, not instantaneously.
func (p *Publisher) Connected() bool {
	p.mu.Lock()
	subs := make([]*subscriber, 0, len(p.subs))
	for _, sub := range p.subs {
		subs = append(subs, sub)
	}
	attached := p.attached
	p.mu.Unlock()

	if !attached {
		return true
	}
	for _, sub := range subs {
		if sub.probe == nil || sub.probe() {
			return true
		}
	}
	return false
}

// Subscribe attaches a transport: it atomically returns the buffered events
// with Seq > afterSeq and a channel carrying everything published after
// them, so the combined stream has no gaps and no duplicates. The returned
// cancel func detaches the transport.
func (p *Publisher) Subscribe(afterSeq int64, probe Probe) ([]domain.ProgressEvent, <-chan domain.ProgressEvent, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	replay := p.replayLocked(afterSeq)

	ch := make(chan domain.ProgressEvent, subscriberBuffer)
	if p.closed {
		close(ch)
		return replay, ch, func() {}
	}

	id := p.nextSub
	p.nextSub++
	p.subs[id] = &subscriber{ch: ch, probe: probe}
	p.attached = true

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			close(sub.ch)
			delete(p.subs, id)
		}
	}
	return replay, ch, cancel
}

// ReplayFrom returns buffered events with Seq > afterSeq, in order.
func (p *Publisher) ReplayFrom(afterSeq int64) []domain.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.replayLocked(afterSeq)
}

func (p *Publisher) replayLocked(afterSeq int64) []domain.ProgressEvent {
	var out []domain.ProgressEvent
	for _, ev := range p.buf {
		if ev.Seq > afterSeq {
			out = append(out, ev)
		}
	}
	return out
}

// Close seals the publisher after the run's terminal event: subscriber
// channels are closed and further publishes fail. The buffer stays
// readable for replay until the owner expires the publisher.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.closedAt = time.Now()
	for id, sub := range p.subs {
		close(sub.ch)
		delete(p.subs, id)
	}
}

// ExpiredSince reports whether the publisher closed before the cutoff and
// can be dropped from the registry.
func (p *Publisher) ExpiredSince(cutoff time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed && p.closedAt.Before(cutoff)
}
