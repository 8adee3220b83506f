package control

import (
	"context"
	"fmt"
)

// Consolidator triggers search index maintenance.
type Consolidator interface {
	Consolidate(ctx context.Context) error
}

// Service runs administrative commands on the search daemon.
type Service struct {
	index Consolidator
}

// New creates a control service.
func New(index Consolidator) *Service {
	return &Service{index: index}
}

// Consolidate flushes pending index writes to disk.
func (s *Service) Consolidate(ctx context.Context) error {
	if err := s.index.Consolidate(ctx); err != nil {
		return fmt.Errorf("consolidate index: %w", err)
	}
	return nil
}
