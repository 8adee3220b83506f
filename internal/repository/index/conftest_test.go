package index

import "context"

type pushCall struct {
	collection, bucket, object, text, lang string
}

// mockClient implements the consumer interface for tests.
type mockClient struct {
	pushes []pushCall

	pushFn        func(ctx context.Context) error
	queryFn       func(ctx context.Context, terms string, limit int) ([]string, error)
	suggestFn     func(ctx context.Context, word string, limit int) ([]string, error)
	consolidateFn func(ctx context.Context) error
}

func (m *mockClient) Push(ctx context.Context, collection, bucket, object, text, lang string) error {
	m.pushes = append(m.pushes, pushCall{collection, bucket, object, text, lang})
	if m.pushFn != nil {
		return m.pushFn(ctx)
	}
	return nil
}

func (m *mockClient) Query(ctx context.Context, _, _, terms string, limit int, _ string) ([]string, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, terms, limit)
	}
	return nil, nil
}

func (m *mockClient) Suggest(ctx context.Context, _, _, word string, limit int) ([]string, error) {
	if m.suggestFn != nil {
		return m.suggestFn(ctx, word, limit)
	}
	return nil, nil
}

func (m *mockClient) Consolidate(ctx context.Context) error {
	if m.consolidateFn != nil {
		return m.consolidateFn(ctx)
	}
	return nil
}
