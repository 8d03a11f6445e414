package dp700

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by the typed errors below
var (
	ErrTimeout         = errors.New("timed out waiting for reply")
	ErrSessionClosed   = errors.New("session is closed")
	ErrEmptyReply      = errors.New("empty reply from instrument")
	ErrMissingAck      = errors.New("missing acknowledgement")
	ErrUnexpectedReply = errors.New("unexpected reply")
	ErrInvalidConfig   = errors.New("invalid session configuration")
)

// ConnectionError reports that the port could not be opened or that
// transport I/O failed, including a query that timed out waiting for
// its reply line.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError reports a reply that is absent where an acknowledgement
// was required, empty, or does not match the expected shape. Reply holds
// the offending line when one arrived.
type ProtocolError struct {
	Op    string
	Reply string
	Err   error
}

func (e *ProtocolError) Error() string {
	if e.Reply != "" {
		return fmt.Sprintf("%s: %v: %q", e.Op, e.Err, e.Reply)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ValidationError reports a caller-supplied value outside the valid
// range for the instrument. It is returned before any bytes are written
// to the transport.
type ValidationError struct {
	Op      string
	Value   float64
	Allowed string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %g not within %s", e.Op, e.Value, e.Allowed)
}
