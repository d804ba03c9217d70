package protocol

import "encoding/json"

// Kind names one of the five packet kinds.
type Kind string

const (
	KindCall     Kind = "call"
	KindCallback Kind = "callback"
	KindEvent    Kind = "event"
	KindStream   Kind = "stream"
	KindError    Kind = "error"
)

// Fixed wire keys.
const (
	keyResult = "result"
	keyError  = "error"
	keyName   = "name"
	keySize   = "size"
	keyStatus = "status"
)

// Stream statuses.
const (
	StatusEnd       = "end"
	StatusTerminate = "terminate"
)

// KeepAlive is the reserved ping frame; it is echoed verbatim and never decoded.
const KeepAlive = "{}"

// Object is one wire object before (or after) JSON serialization.
type Object map[string]json.RawMessage

// Packet is the typed descriptor of one wire packet. Which fields are
// meaningful depends on Kind:
//
//	call:     ID, Route (Iface, Version, Member), Args
//	callback: ID, Result
//	event:    ID, Route (Iface, Member), Args
//	stream:   ID, Name, Size, Status
//	error:    ID, Message, Code
type Packet struct {
	Kind    Kind
	ID      int64
	Route   Route
	Args    json.RawMessage
	Result  json.RawMessage
	Name    string
	Size    *int64
	Status  string
	Message string
	Code    int
}

// wireError is the nested error object of an error packet.
type wireError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// IsStreamInit reports whether a stream packet opens a new stream.
func (p Packet) IsStreamInit() bool {
	return p.Kind == KindStream && p.Name != "" && p.Size != nil && *p.Size >= 0
}

// Call builds a call packet.
func Call(id int64, route Route, args json.RawMessage) Packet {
	return Packet{Kind: KindCall, ID: id, Route: route, Args: args}
}

// Callback builds a callback packet for a marshaled result.
func Callback(id int64, result json.RawMessage) Packet {
	return Packet{Kind: KindCallback, ID: id, Result: result}
}

// Event builds an event packet.
func Event(id int64, iface, name string, args json.RawMessage) Packet {
	return Packet{Kind: KindEvent, ID: id, Route: Route{Iface: iface, Member: name}, Args: args}
}

// StreamInit builds a stream packet that opens a stream.
func StreamInit(id int64, name string, size int64) Packet {
	return Packet{Kind: KindStream, ID: id, Name: name, Size: &size}
}

// StreamStatus builds a stream packet carrying end or terminate.
func StreamStatus(id int64, status string) Packet {
	return Packet{Kind: KindStream, ID: id, Status: status}
}

// Error builds an error packet addressed to a call id.
func Error(id int64, message string, code int) Packet {
	return Packet{Kind: KindError, ID: id, Message: message, Code: code}
}
