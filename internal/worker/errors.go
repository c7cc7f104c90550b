package worker

import "errors"

var (
	ErrGatewayUnavailable = errors.New("gateway not connected")
	ErrMissingText        = errors.New("product has no formatted message")
	ErrNoDestinations     = errors.New("no destination groups")
)
