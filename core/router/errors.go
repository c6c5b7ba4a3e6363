package router

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the transport layer.
var (
	ErrUnknownExecutor = errors.New("router: unknown executor")
	ErrGatewayTimeout  = errors.New("router: gateway timeout")
	ErrSocketClosed    = errors.New("router: socket closed")
)

// Error is a structured transport error with routing context, grounded on
// core/mdp's *mdp.Error shape.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("router %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("router %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }
