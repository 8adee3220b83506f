package sonic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gosonic "github.com/expectedsh/go-sonic/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingDialer(n *atomic.Int32) func() (*fakeConn, error) {
	return func() (*fakeConn, error) {
		n.Add(1)
		return &fakeConn{}, nil
	}
}

func TestPool_ReusesHealthyConnection(t *testing.T) {
	var dials atomic.Int32
	p := NewPool(ChannelSearch, 2, countingDialer(&dials))

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Do(context.Background(), "ping", func(*fakeConn) error { return nil }))
	}

	assert.Equal(t, int32(1), dials.Load())
	assert.Equal(t, 1, p.Idle())
}

func TestPool_DiscardsOnError(t *testing.T) {
	var dials atomic.Int32
	p := NewPool(ChannelIngest, 1, countingDialer(&dials))

	var used *fakeConn
	err := p.Do(context.Background(), "push", func(c *fakeConn) error {
		used = c
		return errors.New("broken pipe")
	})
	require.Error(t, err)

	var sErr *Error
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, ChannelIngest, sErr.Channel)
	assert.Equal(t, "push", sErr.Op)
	assert.True(t, used.quit.Load())
	assert.Equal(t, 0, p.Idle())

	require.NoError(t, p.Do(context.Background(), "push", func(*fakeConn) error { return nil }))
	assert.Equal(t, int32(2), dials.Load())
}

func TestPool_DialError(t *testing.T) {
	p := NewPool(ChannelControl, 1, func() (*fakeConn, error) { return nil, errDial })

	err := p.Do(context.Background(), "consolidate", func(*fakeConn) error { return nil })
	require.ErrorIs(t, err, errDial)

	// The slot must be returned after a failed dial.
	err = p.Do(context.Background(), "consolidate", func(*fakeConn) error { return nil })
	require.ErrorIs(t, err, errDial)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	var dials atomic.Int32
	p := NewPool(ChannelSearch, 3, countingDialer(&dials))

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), "query", func(*fakeConn) error {
				n := inFlight.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.LessOrEqual(t, dials.Load(), int32(3))
}

func TestPool_AcquireHonoursContext(t *testing.T) {
	p := NewPool(ChannelSearch, 1, func() (*fakeConn, error) { return &fakeConn{}, nil })

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), "query", func(*fakeConn) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Do(ctx, "query", func(*fakeConn) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestPool_ExpiredCallQuitsConnection(t *testing.T) {
	conn := &fakeConn{}
	p := NewPool(ChannelSearch, 1, func() (*fakeConn, error) { return conn, nil })

	block := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := p.Do(ctx, "query", func(*fakeConn) error {
		<-block
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	require.Eventually(t, conn.quit.Load, time.Second, time.Millisecond)
	assert.Equal(t, 0, p.Idle())
}

func TestPool_Close(t *testing.T) {
	conn := &fakeConn{}
	p := NewPool(ChannelIngest, 1, func() (*fakeConn, error) { return conn, nil })

	require.NoError(t, p.Do(context.Background(), "ping", func(*fakeConn) error { return nil }))
	p.Close()

	assert.True(t, conn.quit.Load())
	err := p.Do(context.Background(), "ping", func(*fakeConn) error { return nil })
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_CancelledContextSkipsCall(t *testing.T) {
	var dials atomic.Int32
	p := NewPool(ChannelIngest, 1, countingDialer(&dials))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := p.Do(ctx, "push", func(*fakeConn) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, int32(0), dials.Load())
}

// settledCtx reports done only after the call it guards has returned, so
// the result and the cancellation are both ready when Do selects.
type settledCtx struct {
	context.Context
	returned chan struct{}
	closed   chan struct{}
}

func newSettledCtx() *settledCtx {
	closed := make(chan struct{})
	close(closed)
	return &settledCtx{Context: context.Background(), returned: make(chan struct{}), closed: closed}
}

func (c *settledCtx) Done() <-chan struct{} {
	select {
	case <-c.returned:
		time.Sleep(10 * time.Millisecond)
		return c.closed
	default:
		return nil
	}
}

func (c *settledCtx) Err() error {
	select {
	case <-c.returned:
		return context.Canceled
	default:
		return nil
	}
}

func TestPool_FinishedCallWinsOverDeadline(t *testing.T) {
	for i := 0; i < 20; i++ {
		conn := &fakeConn{}
		p := NewPool(ChannelSearch, 1, func() (*fakeConn, error) { return conn, nil })
		ctx := newSettledCtx()

		err := p.Do(ctx, "query", func(*fakeConn) error {
			close(ctx.returned)
			return nil
		})
		require.NoError(t, err)
		assert.False(t, conn.quit.Load())
		assert.Equal(t, 1, p.Idle())
	}
}

type stalledConn struct {
	fakeConn
	release chan struct{}
}

func (s *stalledConn) Ping() error {
	<-s.release
	return nil
}

func (s *stalledConn) Query(string, string, string, int, int, gosonic.Lang) ([]string, error) {
	return nil, nil
}

func (s *stalledConn) Suggest(string, string, string, int) ([]string, error) { return nil, nil }

func TestClient_PingReturnsAtDeadlineWhenSonicStalls(t *testing.T) {
	conn := &stalledConn{release: make(chan struct{})}
	defer close(conn.release)

	c := NewWithDialers(1, Dialers{
		Ingest:  func() (Ingester, error) { return &fakeIngester{}, nil },
		Search:  func() (Searcher, error) { return conn, nil },
		Control: func() (Controller, error) { return &fakeController{}, nil },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Ping(ctx, ChannelSearch)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
