package gateway

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is across the taxonomy.
var (
	ErrValidation        = errors.New("validation error")
	ErrTransport         = errors.New("transport error")
	ErrInvalidServerData = errors.New("invalid rover data received from server")
)

// ValidationError is raised before any request is made when client-supplied
// input breaks the API contract.
type ValidationError struct {
	Field string
	Value any
}

func (e *ValidationError) Error() string {
	switch e.Field {
	case "coordinates":
		return "invalid coordinates"
	case "direction":
		return "invalid direction"
	case "commands":
		return "invalid command"
	}
	return "invalid " + e.Field
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransportError covers network failures and non-2xx answers. Its message is
// fixed per action; the underlying cause is only reachable through Unwrap.
type TransportError struct {
	Action string
	Err    error
}

func (e *TransportError) Error() string {
	return "failed to " + e.Action
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// InvalidServerDataError means a single-entity response failed normalization.
type InvalidServerDataError struct {
	Action string
	Err    error
}

func (e *InvalidServerDataError) Error() string {
	return ErrInvalidServerData.Error()
}

func (e *InvalidServerDataError) Unwrap() error {
	return e.Err
}

func (e *InvalidServerDataError) Is(target error) bool {
	return target == ErrInvalidServerData
}

// Describe renders err for a user: the classification message, never the raw
// transport cause.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	var te *TransportError
	var de *InvalidServerDataError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &te):
		return te.Error()
	case errors.As(err, &de):
		return de.Error()
	}
	return fmt.Sprintf("unexpected error: %v", err)
}
