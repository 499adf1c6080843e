// Package remote carries resolver operations over HTTP.
package remote

import (
	"errors"
	"fmt"

	"github.com/amirphl/marketboard/internal/resolver"
)

// Request is the body of POST /graphql.
type Request struct {
	Operation string          `json:"operation"`
	Variables resolver.Params `json:"variables,omitempty"`
}

// Response carries either Data or Errors.
type Response struct {
	Data   *resolver.Result `json:"data,omitempty"`
	Errors []ErrorPayload   `json:"errors,omitempty"`
}

type ErrorPayload struct {
	Message string             `json:"message"`
	Kind    resolver.ErrorKind `json:"kind"`
}

// NewErrorPayload classifies err for the wire.
func NewErrorPayload(err error) ErrorPayload {
	return ErrorPayload{Message: err.Error(), Kind: resolver.Kind(err)}
}

// Err rebuilds an error that matches the server-side sentinel under errors.Is.
func (p ErrorPayload) Err() error {
	if sentinel := resolver.SentinelFor(p.Kind); sentinel != nil {
		return &remoteError{msg: p.Message, sentinel: sentinel}
	}
	return fmt.Errorf("remote: %s", p.Message)
}

type remoteError struct {
	msg      string
	sentinel error
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Unwrap() error { return e.sentinel }

// ErrMalformedResponse marks a response with neither data nor errors.
var ErrMalformedResponse = errors.New("remote: malformed response")
