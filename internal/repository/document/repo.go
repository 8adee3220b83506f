package document

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/sonicweb/internal/db"
	"github.com/kailas-cloud/sonicweb/internal/domain"
	domdoc "github.com/kailas-cloud/sonicweb/internal/domain/document"
)

// store is the consumer interface for documents (ISP).
type store interface {
	InsertDocument(ctx context.Context, objectID, details string) (db.DocumentRow, error)
	SelectDocuments(ctx context.Context, objectIDs []string) ([]db.DocumentRow, error)
	ListDocumentsAfter(ctx context.Context, afterSeq int64, limit int) ([]db.DocumentRow, error)
	CountDocuments(ctx context.Context) (int64, error)
}

// Repo maps relational rows to domain documents.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Insert stores doc and returns it with its sequence number and insert time.
func (r *Repo) Insert(ctx context.Context, doc domdoc.Document) (domdoc.Document, error) {
	row, err := r.store.InsertDocument(ctx, doc.ID(), doc.Details())
	if err != nil {
		return domdoc.Document{}, storeErr("insert document "+doc.ID(), err)
	}
	return toDomain(row), nil
}

// GetMany returns the stored documents among ids, keyed by id.
// Identifiers that are not UUIDs cannot reference a row and are skipped.
func (r *Repo) GetMany(ctx context.Context, ids []string) (map[string]domdoc.Document, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if domdoc.IsValidID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return map[string]domdoc.Document{}, nil
	}

	rows, err := r.store.SelectDocuments(ctx, valid)
	if err != nil {
		return nil, storeErr("select documents", err)
	}

	out := make(map[string]domdoc.Document, len(rows))
	for _, row := range rows {
		out[row.ObjectID] = toDomain(row)
	}
	return out, nil
}

// ListAfter returns up to limit documents with sequence number > afterSeq, ordered by sequence.
func (r *Repo) ListAfter(ctx context.Context, afterSeq int64, limit int) ([]domdoc.Document, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.store.ListDocumentsAfter(ctx, afterSeq, limit)
	if err != nil {
		return nil, storeErr("list documents", err)
	}

	docs := make([]domdoc.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, toDomain(row))
	}
	return docs, nil
}

// Count returns the number of stored documents.
func (r *Repo) Count(ctx context.Context) (int64, error) {
	n, err := r.store.CountDocuments(ctx)
	if err != nil {
		return 0, storeErr("count documents", err)
	}
	return n, nil
}

func toDomain(row db.DocumentRow) domdoc.Document {
	return domdoc.Reconstruct(row.ObjectID, row.Details, row.Seq, row.CreatedAt)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStore, err)
}
