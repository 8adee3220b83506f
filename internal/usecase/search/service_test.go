package search

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sonicweb/internal/domain"
	domdoc "github.com/kailas-cloud/sonicweb/internal/domain/document"
)

// --- Mocks ---

type mockRepo struct {
	docs    map[string]domdoc.Document
	err     error
	gotIDs  []string
	getCall int
}

func (m *mockRepo) GetMany(_ context.Context, ids []string) (map[string]domdoc.Document, error) {
	m.getCall++
	m.gotIDs = ids
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]domdoc.Document)
	for _, id := range ids {
		if d, ok := m.docs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

type mockIndex struct {
	mu       sync.Mutex
	terms    map[string][]string
	queried  []string
	err      error
	suggests []string
	gotWord  string
}

func (m *mockIndex) Query(_ context.Context, term string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queried = append(m.queried, term)
	if m.err != nil {
		return nil, m.err
	}
	return m.terms[term], nil
}

func (m *mockIndex) Suggest(_ context.Context, word string) ([]string, error) {
	m.gotWord = word
	if m.err != nil {
		return nil, m.err
	}
	return m.suggests, nil
}

func doc(id, details string) domdoc.Document {
	return domdoc.Reconstruct(id, details, 1, time.Time{})
}

func details(docs []domdoc.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Details()
	}
	return out
}

// --- Tests ---

func TestSearch_SingleTerm(t *testing.T) {
	idx := &mockIndex{terms: map[string][]string{"iphone": {"a", "b"}}}
	repo := &mockRepo{docs: map[string]domdoc.Document{
		"a": doc("a", "Red Iphone"),
		"b": doc("b", "Blue Iphone"),
	}}
	svc := New(repo, idx, zap.NewNop())

	got, err := svc.Search(context.Background(), "iphone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"Red Iphone", "Blue Iphone"}; !reflect.DeepEqual(details(got), want) {
		t.Errorf("got %v, want %v", details(got), want)
	}
}

func TestSearch_MergesTermsInOrder(t *testing.T) {
	idx := &mockIndex{terms: map[string][]string{
		"red":    {"a", "c"},
		"iphone": {"a", "b"},
	}}
	repo := &mockRepo{docs: map[string]domdoc.Document{
		"a": doc("a", "Red Iphone"),
		"b": doc("b", "Blue Iphone"),
		"c": doc("c", "Red Car"),
	}}
	svc := New(repo, idx, zap.NewNop())

	got, err := svc.Search(context.Background(), "red  iphone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"Red Iphone", "Red Car", "Blue Iphone"}; !reflect.DeepEqual(details(got), want) {
		t.Errorf("got %v, want %v", details(got), want)
	}
	if !reflect.DeepEqual(repo.gotIDs, []string{"a", "c", "b"}) {
		t.Errorf("expected deduplicated lookup, got %v", repo.gotIDs)
	}
}

func TestSearch_RepeatedTermQueriedOnce(t *testing.T) {
	idx := &mockIndex{terms: map[string][]string{"red": {"a"}}}
	repo := &mockRepo{docs: map[string]domdoc.Document{"a": doc("a", "Red")}}
	svc := New(repo, idx, zap.NewNop())

	if _, err := svc.Search(context.Background(), "red red red"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.queried) != 1 {
		t.Errorf("expected 1 index query, got %v", idx.queried)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	idx := &mockIndex{}
	repo := &mockRepo{}
	svc := New(repo, idx, zap.NewNop())

	for _, q := range []string{"", "   ", "\t\n"} {
		got, err := svc.Search(context.Background(), q)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", q, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice for %q, got %v", q, got)
		}
	}
	if len(idx.queried) != 0 || repo.getCall != 0 {
		t.Error("backends must not be called for an empty query")
	}
}

func TestSearch_NoMatches(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, &mockIndex{}, zap.NewNop())

	got, err := svc.Search(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
	if repo.getCall != 0 {
		t.Error("store must not be queried without hits")
	}
}

func TestSearch_SkipsOrphans(t *testing.T) {
	idx := &mockIndex{terms: map[string][]string{"phone": {"gone", "a"}}}
	repo := &mockRepo{docs: map[string]domdoc.Document{"a": doc("a", "Phone")}}
	svc := New(repo, idx, zap.NewNop())

	got, err := svc.Search(context.Background(), "phone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"Phone"}; !reflect.DeepEqual(details(got), want) {
		t.Errorf("got %v, want %v", details(got), want)
	}
}

func TestSearch_IndexError(t *testing.T) {
	idx := &mockIndex{err: fmt.Errorf("query: %w", domain.ErrSearchBackend)}
	svc := New(&mockRepo{}, idx, zap.NewNop())

	_, err := svc.Search(context.Background(), "red iphone")
	if !errors.Is(err, domain.ErrSearchBackend) {
		t.Errorf("expected ErrSearchBackend, got %v", err)
	}
}

func TestSearch_StoreError(t *testing.T) {
	idx := &mockIndex{terms: map[string][]string{"red": {"a"}}}
	repo := &mockRepo{err: fmt.Errorf("select: %w", domain.ErrStore)}
	svc := New(repo, idx, zap.NewNop())

	_, err := svc.Search(context.Background(), "red")
	if !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}
}

func TestSearch_ManyTermsBounded(t *testing.T) {
	terms := map[string][]string{}
	docs := map[string]domdoc.Document{}
	query := ""
	for i := 0; i < 20; i++ {
		term := fmt.Sprintf("t%d", i)
		id := fmt.Sprintf("id%d", i)
		terms[term] = []string{id}
		docs[id] = doc(id, term)
		query += term + " "
	}
	svc := New(&mockRepo{docs: docs}, &mockIndex{terms: terms}, zap.NewNop()).WithConcurrency(2)

	got, err := svc.Search(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("expected 20 results, got %d", len(got))
	}
	for i, d := range got {
		if d.Details() != fmt.Sprintf("t%d", i) {
			t.Errorf("result %d = %q, order not preserved", i, d.Details())
		}
	}
}

func TestSuggest_LastWord(t *testing.T) {
	idx := &mockIndex{suggests: []string{"iphone", "iphone", "ipad"}}
	svc := New(&mockRepo{}, idx, zap.NewNop())

	got, err := svc.Suggest(context.Background(), "red ip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.gotWord != "ip" {
		t.Errorf("expected suggest on %q, got %q", "ip", idx.gotWord)
	}
	if want := []string{"iphone", "ipad"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSuggest_Empty(t *testing.T) {
	idx := &mockIndex{}
	svc := New(&mockRepo{}, idx, zap.NewNop())

	got, err := svc.Suggest(context.Background(), "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 || idx.gotWord != "" {
		t.Errorf("expected no backend call, got %v", got)
	}
}

func TestMergeIDs(t *testing.T) {
	got := mergeIDs([][]string{{"a", "b"}, nil, {"b", "c", "a"}})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("mergeIDs = %v, want %v", got, want)
	}
}
