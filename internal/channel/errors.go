package channel

import (
	"errors"

	"github.com/danmuck/chanrpc/internal/rpc"
)

var (
	ErrClosed        = errors.New("channel: closed")
	ErrNotPersistent = errors.New("channel: transport has no persistent connection")
	ErrInvalidEvent  = errors.New("channel: invalid event name")
)

// Peer-facing failures. Their Message is what a pass-through error packet
// carries.
var (
	errPacketStructure = &rpc.Error{Message: "packet structure error", Code: 400}
	errStreamStructure = &rpc.Error{Message: "stream structure error", Code: 400}
	errStreamMissing   = &rpc.Error{Message: "stream is not initialized", Code: 400}
	errStreamExists    = &rpc.Error{Message: "stream is already initialized", Code: 400}
)
