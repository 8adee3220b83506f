package sonic

import "errors"

// ErrPoolClosed is returned by operations on a closed pool.
var ErrPoolClosed = errors.New("sonic: pool closed")

// Channel names a Sonic channel mode.
type Channel string

// Channel modes.
const (
	ChannelIngest  Channel = "ingest"
	ChannelSearch  Channel = "search"
	ChannelControl Channel = "control"
)

// Error wraps a channel failure with the mode and command that produced it.
type Error struct {
	Channel Channel
	Op      string
	Err     error
}

func (e *Error) Error() string { return string(e.Channel) + " " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
