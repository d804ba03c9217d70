package streams

import "errors"

var (
	ErrStreamExists = errors.New("streams: stream already initialized")
	ErrClosed       = errors.New("streams: stream closed")
	ErrTerminated   = errors.New("streams: stream terminated")
	ErrSizeExceeded = errors.New("streams: declared size exceeded")
	ErrInvalidName  = errors.New("streams: stream name is required")
	ErrInvalidSize  = errors.New("streams: stream size must be positive")
)
