package ingest

import (
	"context"

	domdoc "github.com/kailas-cloud/sonicweb/internal/domain/document"
)

// Repository persists documents.
type Repository interface {
	Insert(ctx context.Context, doc domdoc.Document) (domdoc.Document, error)
	ListAfter(ctx context.Context, afterSeq int64, limit int) ([]domdoc.Document, error)
	Count(ctx context.Context) (int64, error)
}

// Indexer pushes documents into the search index.
type Indexer interface {
	Push(ctx context.Context, doc domdoc.Document) error
}
