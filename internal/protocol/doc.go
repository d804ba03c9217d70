// Package protocol owns the packet wire contract.
//
// Ownership boundary:
// - packet kinds and typed descriptors
// - wire object encode/decode (routing key compose/decompose)
// - binary chunk framing (see protocol/chunk)
//
// Every packet is a flat JSON object. call and event packets carry exactly one
// dynamic key "<iface>[.<ver>]/<member>" next to their kind key; that key is
// built and split only here, callers work with Route.
package protocol
