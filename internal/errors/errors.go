package errors

import "errors"

// Sentinel errors shared by the service and API layers. Services wrap them
// with %w and the API maps them to HTTP statuses with errors.Is, so neither
// side depends on the other's details.

var (
	// ErrNotFound means the conversation (or other resource) does not exist.
	// Mapped to 404 Not Found.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation means the request failed a business rule, such as an
	// empty prompt or an unknown model. Mapped to 400 Bad Request.
	ErrValidation = errors.New("validation failed")

	// ErrConflict means the operation clashes with the current state of a
	// resource. Mapped to 409 Conflict.
	ErrConflict = errors.New("resource conflict")

	// ErrPermission is mapped to 403 Forbidden.
	ErrPermission = errors.New("permission denied")

	// ErrUpstream means the language model provider failed or is unreachable.
	// Mapped to 502 Bad Gateway.
	ErrUpstream = errors.New("model provider unavailable")

	// ErrInternal hides unexpected failures from clients. Mapped to 500.
	ErrInternal = errors.New("internal server error")
)
