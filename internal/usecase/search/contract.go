package search

import (
	"context"

	domdoc "github.com/kailas-cloud/sonicweb/internal/domain/document"
)

// Repository loads documents by identifier.
type Repository interface {
	GetMany(ctx context.Context, ids []string) (map[string]domdoc.Document, error)
}

// Index answers term queries and word completions.
type Index interface {
	Query(ctx context.Context, term string) ([]string, error)
	Suggest(ctx context.Context, word string) ([]string, error)
}
