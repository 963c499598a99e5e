package common

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSymbol is returned for operations on a symbol that was never registered.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrTradingBlocked is returned when an order targets a symbol that is not Active.
	ErrTradingBlocked = errors.New("trading blocked")
)

// GatewayError reports a transport or venue failure.
type GatewayError struct {
	Op      string
	Code    int
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("gateway %s: code %d: %s", e.Op, e.Code, e.Message)
	default:
		return fmt.Sprintf("gateway %s: %s", e.Op, e.Message)
	}
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ParseError reports a venue field that could not be read as a number.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigError reports an invalid symbol configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}
