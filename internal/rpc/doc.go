// Package rpc owns the procedure side of a call: the method registry,
// admission gates, per-call context, and the error value procedures return.
package rpc
