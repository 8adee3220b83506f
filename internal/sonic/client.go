// Package sonic pools Sonic channel connections and exposes the commands the
// application issues on them.
package sonic

import (
	"context"
	"errors"
	"fmt"
	"time"

	gosonic "github.com/expectedsh/go-sonic/sonic"

	"github.com/kailas-cloud/sonicweb/internal/metrics"
)

// Ingester is the subset of the ingest channel the client uses.
type Ingester interface {
	Conn
	Push(collection, bucket, object, text string, lang gosonic.Lang) error
}

// Searcher is the subset of the search channel the client uses.
type Searcher interface {
	Conn
	Query(collection, bucket, terms string, limit, offset int, lang gosonic.Lang) ([]string, error)
	Suggest(collection, bucket, word string, limit int) ([]string, error)
}

// Controller is the subset of the control channel the client uses.
type Controller interface {
	Conn
	Trigger(action gosonic.Action) error
}

// Config holds connection parameters for all three channel pools.
type Config struct {
	Host     string
	Port     int
	Password string
	PoolSize int
}

// Dialers open a fresh authenticated connection per channel mode.
type Dialers struct {
	Ingest  func() (Ingester, error)
	Search  func() (Searcher, error)
	Control func() (Controller, error)
}

// Client issues Sonic commands over per-mode connection pools.
type Client struct {
	ingest  *Pool[Ingester]
	search  *Pool[Searcher]
	control *Pool[Controller]
}

// New creates a client that dials cfg's Sonic server lazily.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("sonic: host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("sonic: invalid port %d", cfg.Port)
	}

	return NewWithDialers(cfg.PoolSize, Dialers{
		Ingest: func() (Ingester, error) {
			return gosonic.NewIngester(cfg.Host, cfg.Port, cfg.Password) //nolint:wrapcheck // wrapped by Pool.Do
		},
		Search: func() (Searcher, error) {
			return gosonic.NewSearch(cfg.Host, cfg.Port, cfg.Password) //nolint:wrapcheck // wrapped by Pool.Do
		},
		Control: func() (Controller, error) {
			return gosonic.NewControl(cfg.Host, cfg.Port, cfg.Password) //nolint:wrapcheck // wrapped by Pool.Do
		},
	}), nil
}

// NewWithDialers creates a client over caller-supplied dialers.
func NewWithDialers(poolSize int, d Dialers) *Client {
	return &Client{
		ingest:  NewPool(ChannelIngest, poolSize, d.Ingest),
		search:  NewPool(ChannelSearch, poolSize, d.Search),
		control: NewPool(ChannelControl, poolSize, d.Control),
	}
}

// Push indexes text under object. An empty lang lets Sonic detect it.
func (c *Client) Push(ctx context.Context, collection, bucket, object, text, lang string) error {
	return observe(ChannelIngest, "push", func() error {
		return c.ingest.Do(ctx, "push", func(conn Ingester) error {
			return conn.Push(collection, bucket, object, text, gosonic.Lang(lang))
		})
	})
}

// Query returns up to limit object identifiers matching terms.
func (c *Client) Query(ctx context.Context, collection, bucket, terms string, limit int, lang string) ([]string, error) {
	var ids []string
	err := observe(ChannelSearch, "query", func() error {
		return c.search.Do(ctx, "query", func(conn Searcher) error {
			res, err := conn.Query(collection, bucket, terms, limit, 0, gosonic.Lang(lang))
			ids = res
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return compact(ids), nil
}

// Suggest returns up to limit completions of word.
func (c *Client) Suggest(ctx context.Context, collection, bucket, word string, limit int) ([]string, error) {
	var words []string
	err := observe(ChannelSearch, "suggest", func() error {
		return c.search.Do(ctx, "suggest", func(conn Searcher) error {
			res, err := conn.Suggest(collection, bucket, word, limit)
			words = res
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return compact(words), nil
}

// Consolidate triggers index consolidation.
func (c *Client) Consolidate(ctx context.Context) error {
	return observe(ChannelControl, "consolidate", func() error {
		return c.control.Do(ctx, "consolidate", func(conn Controller) error {
			return conn.Trigger(gosonic.Consolidate)
		})
	})
}

// Ping checks one channel mode end to end.
func (c *Client) Ping(ctx context.Context, ch Channel) error {
	switch ch {
	case ChannelIngest:
		return c.ingest.Do(ctx, "ping", func(conn Ingester) error { return conn.Ping() })
	case ChannelSearch:
		return c.search.Do(ctx, "ping", func(conn Searcher) error { return conn.Ping() })
	case ChannelControl:
		return c.control.Do(ctx, "ping", func(conn Controller) error { return conn.Ping() })
	default:
		return fmt.Errorf("sonic: unknown channel %q", ch)
	}
}

// Close quits every pooled connection.
func (c *Client) Close() {
	c.ingest.Close()
	c.search.Close()
	c.control.Close()
}

func observe(ch Channel, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SonicRequestsTotal.WithLabelValues(string(ch), op, status).Inc()
	metrics.SonicRequestDuration.WithLabelValues(string(ch), op).Observe(time.Since(start).Seconds())
	return err
}

// compact drops empty entries Sonic returns for an empty result line.
func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
