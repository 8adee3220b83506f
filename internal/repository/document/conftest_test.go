package document

import (
	"context"

	"github.com/kailas-cloud/sonicweb/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	insertFn func(ctx context.Context, objectID, details string) (db.DocumentRow, error)
	selectFn func(ctx context.Context, objectIDs []string) ([]db.DocumentRow, error)
	listFn   func(ctx context.Context, afterSeq int64, limit int) ([]db.DocumentRow, error)
	countFn  func(ctx context.Context) (int64, error)
}

func (m *mockStore) InsertDocument(ctx context.Context, objectID, details string) (db.DocumentRow, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, objectID, details)
	}
	return db.DocumentRow{Seq: 1, ObjectID: objectID, Details: details}, nil
}

func (m *mockStore) SelectDocuments(ctx context.Context, objectIDs []string) ([]db.DocumentRow, error) {
	if m.selectFn != nil {
		return m.selectFn(ctx, objectIDs)
	}
	return nil, nil
}

func (m *mockStore) ListDocumentsAfter(ctx context.Context, afterSeq int64, limit int) ([]db.DocumentRow, error) {
	if m.listFn != nil {
		return m.listFn(ctx, afterSeq, limit)
	}
	return nil, nil
}

func (m *mockStore) CountDocuments(ctx context.Context) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}
