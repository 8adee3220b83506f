package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	domdoc "github.com/kailas-cloud/sonicweb/internal/domain/document"
	logpkg "github.com/kailas-cloud/sonicweb/internal/logger"
	"github.com/kailas-cloud/sonicweb/internal/metrics"
)

// ReindexResult counts the outcome of a reindex run.
type ReindexResult struct {
	Pushed int
	Failed int
}

// Service stores documents and keeps the search index in step with the store.
type Service struct {
	repo        Repository
	index       Indexer
	logger      *zap.Logger
	batchSize   int
	ratePerSec  float64
	concurrency int
}

// New creates an ingest service.
func New(repo Repository, index Indexer, logger *zap.Logger) *Service {
	return &Service{
		repo:        repo,
		index:       index,
		logger:      logger,
		batchSize:   100,
		ratePerSec:  200,
		concurrency: 4,
	}
}

// WithReindex configures reindex paging, pacing and parallelism.
func (s *Service) WithReindex(batchSize int, ratePerSec float64, concurrency int) *Service {
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if ratePerSec > 0 {
		s.ratePerSec = ratePerSec
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	return s
}

// Ingest stores text under a fresh identifier, then pushes it into the index.
// A failed push leaves the stored row in place for Reindex to repair.
func (s *Service) Ingest(ctx context.Context, text string) (domdoc.Document, error) {
	doc, err := domdoc.New(text)
	if err != nil {
		return domdoc.Document{}, err
	}

	stored, err := s.repo.Insert(ctx, doc)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("store document: %w", err)
	}

	if err := s.index.Push(ctx, stored); err != nil {
		metrics.IndexPushFailuresTotal.WithLabelValues("ingest").Inc()
		logpkg.FromContextOr(ctx, s.logger).Error("Document stored but not indexed",
			zap.String("object_id", stored.ID()),
			zap.Error(err),
		)
		return stored, fmt.Errorf("index document %s: %w", stored.ID(), err)
	}

	return stored, nil
}

// Reindex pushes every stored document into the index again, in store order.
// Individual push failures are counted, not fatal.
func (s *Service) Reindex(ctx context.Context) (ReindexResult, error) {
	log := logpkg.FromContextOr(ctx, s.logger)
	start := time.Now()

	burst := int(s.ratePerSec)
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(s.ratePerSec), burst)

	var pushed, failed atomic.Int64
	result := func() ReindexResult {
		return ReindexResult{Pushed: int(pushed.Load()), Failed: int(failed.Load())}
	}

	var cursor int64
	for {
		docs, err := s.repo.ListAfter(ctx, cursor, s.batchSize)
		if err != nil {
			return result(), fmt.Errorf("list documents after %d: %w", cursor, err)
		}
		if len(docs) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, doc := range docs {
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					return fmt.Errorf("rate limit: %w", err)
				}
				if err := s.index.Push(gctx, doc); err != nil {
					failed.Add(1)
					metrics.IndexPushFailuresTotal.WithLabelValues("reindex").Inc()
					log.Warn("Reindex push failed", zap.String("object_id", doc.ID()), zap.Error(err))
					return nil
				}
				pushed.Add(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return result(), fmt.Errorf("reindex batch after %d: %w", cursor, err)
		}

		cursor = docs[len(docs)-1].Seq()
		if len(docs) < s.batchSize {
			break
		}
	}

	res := result()
	log.Info("Reindex finished",
		zap.Int("pushed", res.Pushed),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

// Count returns the number of stored documents.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
