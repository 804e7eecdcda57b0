package matrix

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is matched by every ValidationError.
var ErrOutOfRange = errors.New("port out of range")

// ValidationError reports a port number outside [1, Max]. It is raised before
// any I/O takes place.
type ValidationError struct {
	Port  string // "output" or "input"
	Value int
	Max   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must be between 1 and %d, got %d", e.Port, e.Max, e.Value)
}

// Is lets errors.Is(err, ErrOutOfRange) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrOutOfRange
}

// Kind classifies a TransportError. Callers are expected to treat all kinds
// the same way; the kind exists for logs and tests.
type Kind int

const (
	// KindNetwork covers refused connections, DNS failures and timeouts.
	KindNetwork Kind = iota
	// KindStatus is a non-200 HTTP reply.
	KindStatus
	// KindDecode is a body that is not valid JSON.
	KindDecode
	// KindProtocol is valid JSON that lacks fields the command requires.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "http status"
	case KindDecode:
		return "decode"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// TransportError is the single error type for everything that goes wrong
// between sending a command and holding a usable reply.
type TransportError struct {
	Command    string
	Kind       Kind
	StatusCode int // set for KindStatus
	Err        error
}

func (e *TransportError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s: device returned status %d", e.Command, e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Command, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Command, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func protocolError(command, format string, args ...any) *TransportError {
	return &TransportError{Command: command, Kind: KindProtocol, Err: fmt.Errorf(format, args...)}
}
