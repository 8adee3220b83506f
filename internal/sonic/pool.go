package sonic

import (
	"context"
	"sync"

	"github.com/kailas-cloud/sonicweb/internal/metrics"
)

// Conn is the lifecycle every Sonic channel connection shares.
type Conn interface {
	Ping() error
	Quit() error
}

// Pool is a bounded set of connections of one channel mode.
// Connections are dialled lazily, reused on success and discarded on error.
type Pool[C Conn] struct {
	channel Channel
	dial    func() (C, error)
	slots   chan struct{}

	mu     sync.Mutex
	idle   []C
	closed bool
}

// NewPool creates a pool holding at most size live connections.
func NewPool[C Conn](channel Channel, size int, dial func() (C, error)) *Pool[C] {
	if size <= 0 {
		size = 1
	}
	return &Pool[C]{
		channel: channel,
		dial:    dial,
		slots:   make(chan struct{}, size),
	}
}

// Do runs fn on a pooled connection. If ctx expires first, Do returns ctx.Err()
// and the connection is quit once fn returns.
func (p *Pool[C]) Do(ctx context.Context, op string, fn func(C) error) error {
	c, err := p.acquire(ctx)
	if err != nil {
		return &Error{Channel: p.channel, Op: op, Err: err}
	}

	done := make(chan error, 1)
	go func() { done <- fn(c) }()

	select {
	case err := <-done:
		return p.finish(c, op, err)
	case <-ctx.Done():
		// A result that raced the deadline still wins.
		select {
		case err := <-done:
			return p.finish(c, op, err)
		default:
		}
		go func() {
			<-done
			p.release(c, false)
		}()
		return &Error{Channel: p.channel, Op: op, Err: ctx.Err()}
	}
}

func (p *Pool[C]) finish(c C, op string, err error) error {
	p.release(c, err == nil)
	if err != nil {
		return &Error{Channel: p.channel, Op: op, Err: err}
	}
	return nil
}

// Close quits idle connections and rejects further use. Checked-out
// connections are quit when returned.
func (p *Pool[C]) Close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	for _, c := range idle {
		_ = c.Quit()
	}
}

// Idle reports the number of parked connections.
func (p *Pool[C]) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

func (p *Pool[C]) acquire(ctx context.Context) (C, error) {
	var zero C

	if err := ctx.Err(); err != nil {
		return zero, err
	}
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return zero, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		metrics.SonicConnectionsInUse.WithLabelValues(string(p.channel)).Inc()
		return c, nil
	}
	p.mu.Unlock()

	c, err := p.dial()
	if err != nil {
		<-p.slots
		return zero, err
	}
	metrics.SonicConnectionsInUse.WithLabelValues(string(p.channel)).Inc()
	return c, nil
}

func (p *Pool[C]) release(c C, healthy bool) {
	metrics.SonicConnectionsInUse.WithLabelValues(string(p.channel)).Dec()
	defer func() { <-p.slots }()

	p.mu.Lock()
	if healthy && !p.closed {
		p.idle = append(p.idle, c)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	_ = c.Quit()
}
