package relay

import "errors"

var (
	// ErrAuthenticationRequired is reported upstream when a tool needs a caller identity the session lacks.
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrUnsupportedTool        = errors.New("unsupported tool")
	ErrUpstreamConnection     = errors.New("upstream connection error")
	ErrUpstreamClosed         = errors.New("upstream connection closed")
	ErrClientClosed           = errors.New("client connection closed")
	ErrSessionClosed          = errors.New("session closed")
	ErrActivityFlush          = errors.New("activity flush failed")
)
