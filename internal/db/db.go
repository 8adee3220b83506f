package db

import (
	"context"
	"time"
)

// Store is the relational store facade used by the composition root.
type Store interface {
	Pinger
	DocumentStore
	Migrate(ctx context.Context) ([]string, error)
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentRow is a row of the documents table.
type DocumentRow struct {
	Seq       int64
	ObjectID  string
	Details   string
	CreatedAt time.Time
}

// DocumentStore provides single-statement document queries.
type DocumentStore interface {
	InsertDocument(ctx context.Context, objectID, details string) (DocumentRow, error)
	SelectDocuments(ctx context.Context, objectIDs []string) ([]DocumentRow, error)
	ListDocumentsAfter(ctx context.Context, afterSeq int64, limit int) ([]DocumentRow, error)
	CountDocuments(ctx context.Context) (int64, error)
}

// KVItem holds a single key+value pair for pipelined SET.
type KVItem struct {
	Key   string
	Value []byte
}

// KVStore provides simple key-value operations for caches.
type KVStore interface {
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)
	SetMultiWithTTL(ctx context.Context, items []KVItem, ttl time.Duration) error
}

// CacheStore is the key-value cache facade.
type CacheStore interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}
