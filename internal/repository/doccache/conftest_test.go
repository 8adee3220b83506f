package doccache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sonicweb/internal/db"
	domdoc "github.com/kailas-cloud/sonicweb/internal/domain/document"
)

// mockRepo implements the decorated repository for tests.
type mockRepo struct {
	docs      map[string]domdoc.Document
	getErr    error
	getCalls  [][]string
	inserted  []domdoc.Document
	listCalls int
}

func (m *mockRepo) Insert(_ context.Context, doc domdoc.Document) (domdoc.Document, error) {
	stored := domdoc.Reconstruct(doc.ID(), doc.Details(), int64(len(m.inserted)+1), time.Unix(1700000000, 0).UTC())
	m.inserted = append(m.inserted, stored)
	return stored, nil
}

func (m *mockRepo) GetMany(_ context.Context, ids []string) (map[string]domdoc.Document, error) {
	m.getCalls = append(m.getCalls, ids)
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make(map[string]domdoc.Document)
	for _, id := range ids {
		if d, ok := m.docs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (m *mockRepo) ListAfter(context.Context, int64, int) ([]domdoc.Document, error) {
	m.listCalls++
	return nil, nil
}

func (m *mockRepo) Count(context.Context) (int64, error) {
	return int64(len(m.docs)), nil
}

// mockKVStore is an in-memory cache backend.
type mockKVStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	ttl    time.Duration
}

func (m *mockKVStore) GetMulti(_ context.Context, keys []string) (map[string][]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte)
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *mockKVStore) SetMultiWithTTL(_ context.Context, items []db.KVItem, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	for _, it := range items {
		m.data[it.Key] = it.Value
	}
	m.ttl = ttl
	return nil
}

func newTestRepo(t *testing.T, inner *mockRepo) (*Repo, *mockKVStore, *prometheus.CounterVec) {
	t.Helper()
	ms := &mockKVStore{}
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	return New(inner, ms, time.Hour, counter, zap.NewNop()), ms, counter
}
