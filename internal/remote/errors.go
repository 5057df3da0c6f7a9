package remote

import "errors"

var (
	// ErrNoEndpoints indicates the provider returned no endpoints for the
	// service.
	ErrNoEndpoints = errors.New("remote: no endpoints available")

	// ErrClosed indicates a call on a closed transport.
	ErrClosed = errors.New("remote: transport closed")

	// ErrRemote wraps a failure reported by the remote host for one batch
	// item.
	ErrRemote = errors.New("remote: call failed")
)
