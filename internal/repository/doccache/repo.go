// Package doccache is a read-through cache in front of the document repository.
// Stored documents never change, so entries are only ever added or expired.
package doccache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sonicweb/internal/db"
	domdoc "github.com/kailas-cloud/sonicweb/internal/domain/document"
)

const cacheKeyPrefix = "sonicweb:doc:"

// store is the consumer interface for the cache backend (ISP).
type store interface {
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)
	SetMultiWithTTL(ctx context.Context, items []db.KVItem, ttl time.Duration) error
}

// repository is the decorated document repository.
type repository interface {
	Insert(ctx context.Context, doc domdoc.Document) (domdoc.Document, error)
	GetMany(ctx context.Context, ids []string) (map[string]domdoc.Document, error)
	ListAfter(ctx context.Context, afterSeq int64, limit int) ([]domdoc.Document, error)
	Count(ctx context.Context) (int64, error)
}

// Repo caches documents by identifier. Cache failures are logged and never
// fail the request.
type Repo struct {
	inner      repository
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner repository,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Repo {
	return &Repo{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

type entry struct {
	Details   string    `json:"details"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// Insert stores the document and warms the cache with it.
func (r *Repo) Insert(ctx context.Context, doc domdoc.Document) (domdoc.Document, error) {
	stored, err := r.inner.Insert(ctx, doc)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("insert: %w", err)
	}
	r.put(ctx, []domdoc.Document{stored})
	return stored, nil
}

// GetMany serves cached documents and loads the rest from the inner repository.
func (r *Repo) GetMany(ctx context.Context, ids []string) (map[string]domdoc.Document, error) {
	out := r.get(ctx, ids)

	missing := make([]string, 0, len(ids)-len(out))
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	r.incCache("hit", len(ids)-len(missing))
	r.incCache("miss", len(missing))
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := r.inner.GetMany(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	fresh := make([]domdoc.Document, 0, len(loaded))
	for id, doc := range loaded {
		out[id] = doc
		fresh = append(fresh, doc)
	}
	r.put(ctx, fresh)
	return out, nil
}

// ListAfter is not cached.
func (r *Repo) ListAfter(ctx context.Context, afterSeq int64, limit int) ([]domdoc.Document, error) {
	return r.inner.ListAfter(ctx, afterSeq, limit) //nolint:wrapcheck // pass-through
}

// Count is not cached.
func (r *Repo) Count(ctx context.Context) (int64, error) {
	return r.inner.Count(ctx) //nolint:wrapcheck // pass-through
}

func (r *Repo) get(ctx context.Context, ids []string) map[string]domdoc.Document {
	out := make(map[string]domdoc.Document, len(ids))
	if len(ids) == 0 {
		return out
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	raw, err := r.store.GetMulti(ctx, keys)
	if err != nil {
		r.logger.Warn("Document cache read failed", zap.Int("keys", len(keys)), zap.Error(err))
		return out
	}

	for i, id := range ids {
		data, ok := raw[keys[i]]
		if !ok {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil {
			r.logger.Warn("Corrupt document cache entry", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out[id] = domdoc.Reconstruct(id, e.Details, e.Seq, e.CreatedAt)
	}
	return out
}

func (r *Repo) put(ctx context.Context, docs []domdoc.Document) {
	if len(docs) == 0 {
		return
	}

	items := make([]db.KVItem, 0, len(docs))
	for _, d := range docs {
		data, err := json.Marshal(entry{Details: d.Details(), Seq: d.Seq(), CreatedAt: d.CreatedAt()})
		if err != nil {
			continue
		}
		items = append(items, db.KVItem{Key: cacheKey(d.ID()), Value: data})
	}

	if err := r.store.SetMultiWithTTL(ctx, items, r.ttl); err != nil {
		r.logger.Warn("Failed to cache documents", zap.Int("count", len(items)), zap.Error(err))
	}
}

func (r *Repo) incCache(result string, n int) {
	if r.cacheTotal != nil && n > 0 {
		r.cacheTotal.WithLabelValues(result).Add(float64(n))
	}
}

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}
