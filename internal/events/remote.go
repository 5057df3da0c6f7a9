package events

import (
	"time"

	"google.golang.org/grpc/codes"
)

// RemoteCallStart is emitted before an RPC leaves the remote transport.
type RemoteCallStart struct {
	Service string
	Method  string
	Target  string
}

// RemoteCallFinish is emitted after the RPC returns or fails.
type RemoteCallFinish struct {
	Service  string
	Method   string
	Target   string
	Code     codes.Code
	Err      error
	Duration time.Duration
}
