package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrDuplicateKey  = errors.New("db: duplicate key")
	ErrInvalidConfig = errors.New("db: invalid config")
)

// Op constants name the statement or command for error context.
const (
	OpConnect = "CONNECT"
	OpInsert  = "INSERT"
	OpSelect  = "SELECT"
	OpList    = "LIST"
	OpCount   = "COUNT"
	OpMigrate = "MIGRATE"
	OpGet     = "GET"
	OpSet     = "SET"
	OpPing    = "PING"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
