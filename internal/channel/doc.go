// Package channel owns one connection's protocol state machine.
//
// Ownership boundary:
// - inbound text/binary frame dispatch through the packet codec
// - call invocation (validation, resolution, access, admission)
// - session binding for the connection
// - the stream table and the Client facade handed to procedures
// - translation of every failure into one error packet
//
// Id namespace invariant: ids the server allocates for events and streams
// start at 0 and strictly decrease (-1, -2, ...); ids the peer allocates are
// positive. The sign alone tells which side opened a stream.
package channel
