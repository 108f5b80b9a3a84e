package routing

import "errors"

// Error taxonomy shared by the engine, the resource cache and the HTTP layer.
// Callers wrap these with fmt.Errorf("...: %w", err) and match with errors.Is.
var (
	// ErrConfiguration: static network or layer files missing or corrupt. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrInput: request is missing start/finish or carries invalid coordinates.
	ErrInput = errors.New("invalid input")
	// ErrNotFound: no connecting path, or a weight-table miss.
	ErrNotFound = errors.New("not found")
	// ErrTransientUpstream: dynamic data source unavailable for this refresh cycle.
	ErrTransientUpstream = errors.New("upstream data unavailable")
	// ErrInternal: anything unexpected during search or scoring.
	ErrInternal = errors.New("internal error")
)
