package protocol

import "errors"

var (
	ErrUnsupportedKind = errors.New("protocol: unsupported packet kind")
	ErrMalformedRoute  = errors.New("protocol: malformed route key")
	ErrMissingRoute    = errors.New("protocol: missing route key")
	ErrExtraKeys       = errors.New("protocol: unexpected extra keys")
	ErrInvalidID       = errors.New("protocol: invalid packet id")
	ErrEmptyObject     = errors.New("protocol: empty object")
)
