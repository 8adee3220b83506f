package health

import (
	"context"

	"github.com/kailas-cloud/sonicweb/internal/sonic"
)

// DBPinger checks database or cache availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// SonicPinger checks one search daemon channel mode.
type SonicPinger interface {
	Ping(ctx context.Context, ch sonic.Channel) error
}
