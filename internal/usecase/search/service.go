package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	domdoc "github.com/kailas-cloud/sonicweb/internal/domain/document"
	logpkg "github.com/kailas-cloud/sonicweb/internal/logger"
	"github.com/kailas-cloud/sonicweb/internal/metrics"
)

// Service resolves free-text queries to stored documents.
type Service struct {
	repo        Repository
	index       Index
	logger      *zap.Logger
	concurrency int
}

// New creates a search service.
func New(repo Repository, index Index, logger *zap.Logger) *Service {
	return &Service{
		repo:        repo,
		index:       index,
		logger:      logger,
		concurrency: 4,
	}
}

// WithConcurrency bounds the number of terms queried at once.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Search queries the index once per whitespace-separated term and returns the
// matching documents. Identifiers keep term order then index rank; the first
// occurrence wins. Hits with no stored row are skipped.
func (s *Service) Search(ctx context.Context, query string) ([]domdoc.Document, error) {
	terms := uniqueTerms(query)
	if len(terms) == 0 {
		return []domdoc.Document{}, nil
	}

	hits := make([][]string, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, term := range terms {
		g.Go(func() error {
			ids, err := s.index.Query(gctx, term)
			if err != nil {
				return fmt.Errorf("query term %q: %w", term, err)
			}
			hits[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // already wrapped per term
	}

	ids := mergeIDs(hits)
	if len(ids) == 0 {
		return []domdoc.Document{}, nil
	}

	found, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	docs := make([]domdoc.Document, 0, len(ids))
	var orphans []string
	for _, id := range ids {
		doc, ok := found[id]
		if !ok {
			orphans = append(orphans, id)
			continue
		}
		docs = append(docs, doc)
	}

	if len(orphans) > 0 {
		metrics.OrphanedReferencesTotal.Add(float64(len(orphans)))
		logpkg.FromContextOr(ctx, s.logger).Warn("Index returned identifiers with no stored document",
			zap.Strings("object_ids", orphans),
		)
	}

	return docs, nil
}

// Suggest completes the last word of input.
func (s *Service) Suggest(ctx context.Context, input string) ([]string, error) {
	words := strings.Fields(input)
	if len(words) == 0 {
		return []string{}, nil
	}

	found, err := s.index.Suggest(ctx, words[len(words)-1])
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	return dedupe(found), nil
}

func uniqueTerms(query string) []string {
	return dedupe(strings.Fields(query))
}

// mergeIDs flattens per-term hits, keeping the first occurrence of each identifier.
func mergeIDs(hits [][]string) []string {
	var n int
	for _, h := range hits {
		n += len(h)
	}
	flat := make([]string, 0, n)
	for _, h := range hits {
		flat = append(flat, h...)
	}
	return dedupe(flat)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
