package graph

import (
	"fmt"

	"tlog.app/go/errors"
)

var (
	ErrNodeNotFound    = errors.New("node not found")
	ErrInvalidEndpoint = errors.New("invalid connection endpoint")
	ErrKindMismatch    = errors.New("payload kind does not match node kind")
	ErrBadField        = errors.New("bad field value")
)

// ConnectCode classifies a rejected Connect.
type ConnectCode int

const (
	AlreadyConnected ConnectCode = iota + 1
	DuplicateReturn
	UnassignedSource
)

func (c ConnectCode) String() string {
	switch c {
	case AlreadyConnected:
		return "already connected"
	case DuplicateReturn:
		return "duplicate return"
	case UnassignedSource:
		return "unassigned source"
	default:
		return fmt.Sprintf("ConnectCode(%d)", int(c))
	}
}

// ConnectError is returned when a connection would break a structural rule.
// The graph is unchanged whenever one is returned.
type ConnectError struct {
	Code   ConnectCode
	Source NodeID
	Target NodeID
}

// Sentinels for errors.Is. They match any ConnectError with the same code.
var (
	ErrAlreadyConnected = &ConnectError{Code: AlreadyConnected}
	ErrDuplicateReturn  = &ConnectError{Code: DuplicateReturn}
	ErrUnassignedSource = &ConnectError{Code: UnassignedSource}
)

func (e *ConnectError) Error() string {
	var msg string
	switch e.Code {
	case AlreadyConnected:
		msg = "target already has an incoming connection"
	case DuplicateReturn:
		msg = "function already has a return statement"
	case UnassignedSource:
		msg = "source is not part of any function"
	default:
		msg = e.Code.String()
	}

	if e.Source.IsZero() && e.Target.IsZero() {
		return msg
	}

	return fmt.Sprintf("connect %v -> %v: %s", e.Source, e.Target, msg)
}

func (e *ConnectError) Is(target error) bool {
	t, ok := target.(*ConnectError)
	return ok && t.Code == e.Code
}
