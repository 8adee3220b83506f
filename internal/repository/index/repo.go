package index

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/sonicweb/internal/domain"
	domdoc "github.com/kailas-cloud/sonicweb/internal/domain/document"
)

// client is the consumer interface for the Sonic channels (ISP).
type client interface {
	Push(ctx context.Context, collection, bucket, object, text, lang string) error
	Query(ctx context.Context, collection, bucket, terms string, limit int, lang string) ([]string, error)
	Suggest(ctx context.Context, collection, bucket, word string, limit int) ([]string, error)
	Consolidate(ctx context.Context) error
}

// Config scopes every index call.
type Config struct {
	Namespace    domain.Namespace
	Lang         string
	Timeout      time.Duration
	QueryLimit   int
	SuggestLimit int
}

// Repo indexes and queries documents in one Sonic collection/bucket.
type Repo struct {
	client client
	cfg    Config
}

// New creates an index repository. Zero limits fall back to 10 results per
// query and 5 suggestions.
func New(c client, cfg Config) *Repo {
	if cfg.Namespace.Collection == "" || cfg.Namespace.Bucket == "" {
		cfg.Namespace = domain.DefaultNamespace()
	}
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = 10
	}
	if cfg.SuggestLimit <= 0 {
		cfg.SuggestLimit = 5
	}
	return &Repo{client: c, cfg: cfg}
}

// Namespace returns the collection/bucket the repository writes to.
func (r *Repo) Namespace() domain.Namespace { return r.cfg.Namespace }

// Push indexes the document text under its identifier.
func (r *Repo) Push(ctx context.Context, doc domdoc.Document) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ns := r.cfg.Namespace
	if err := r.client.Push(ctx, ns.Collection, ns.Bucket, doc.ID(), doc.Details(), r.cfg.Lang); err != nil {
		return backendErr("push "+doc.ID(), err)
	}
	return nil
}

// Query returns the identifiers matching a single term, best match first.
func (r *Repo) Query(ctx context.Context, term string) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ns := r.cfg.Namespace
	ids, err := r.client.Query(ctx, ns.Collection, ns.Bucket, term, r.cfg.QueryLimit, r.cfg.Lang)
	if err != nil {
		return nil, backendErr(fmt.Sprintf("query %q", term), err)
	}
	return ids, nil
}

// Suggest returns completions for a word prefix.
func (r *Repo) Suggest(ctx context.Context, word string) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ns := r.cfg.Namespace
	words, err := r.client.Suggest(ctx, ns.Collection, ns.Bucket, word, r.cfg.SuggestLimit)
	if err != nil {
		return nil, backendErr(fmt.Sprintf("suggest %q", word), err)
	}
	return words, nil
}

// Consolidate triggers index consolidation.
func (r *Repo) Consolidate(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.client.Consolidate(ctx); err != nil {
		return backendErr("consolidate", err)
	}
	return nil
}

func (r *Repo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.Timeout)
}

func backendErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrSearchBackend, err)
}
