// Package session owns the process-wide session registry.
//
// Ownership boundary:
// - token -> live Session mapping shared by every channel
// - explicit state mutation with asynchronous write-through persistence
// - Store implementations (memory, etcd)
//
// A Registry is created once at server start and closed at server stop.
// Channels hold a reference to it and never own it.
package session
