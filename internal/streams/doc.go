// Package streams owns chunked binary transfers on one channel.
//
// Inbound streams (peer ids > 0) are Readables fed by binary chunks.
// Outbound streams (server ids <= 0) are Writables that frame bytes into
// chunks and send them over the channel transport.
package streams
