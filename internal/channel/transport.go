package channel

import (
	"context"
	"time"
)

// Frame is one outbound transport unit: text (a JSON packet) or binary (a
// stream chunk). Status is a transport status hint used by request/response
// transports.
type Frame struct {
	Text   []byte
	Binary []byte
	Status int
}

// Transport is the connection or request a Channel talks through.
// Send on a closed transport returns an error and must not panic.
type Transport interface {
	Send(ctx context.Context, f Frame) error
	RemoteAddr() string
	// Persistent reports a long-lived connection; events and outbound
	// streams need one.
	Persistent() bool
	Cookie(name string) (string, bool)
	SetCookie(name, value string)
	Method() string
	URL() string
}

// Recorder receives call and channel metrics.
type Recorder interface {
	ChannelOpened()
	ChannelClosed()
	ObserveCall(iface, method string, code int, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ChannelOpened() {}
func (nopRecorder) ChannelClosed() {}
func (nopRecorder) ObserveCall(string, string, int, time.Duration) {}
