// Package transport exposes channels over HTTP. GET /ws upgrades to a
// websocket and keeps one channel per connection; POST /api runs a single
// packet through a short-lived channel and answers with the first frame it
// produces.
package transport
