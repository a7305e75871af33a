// Package transport defines the transport layer of the RPC system.
//
// A transport moves opaque, already-serialized messages between client
// and server over a persistent stream connection. Requests and
// responses are framed with a request ID so that multiple requests can
// be in flight on one connection and responses can return out of order,
// which matters when small catalog requests share a connection with
// large column transfers.
//
// The base sub-package implements the framing, the per-connection
// worker pool on the server and the multiplexing client; the tcp and
// unix sub-packages contribute the medium-specific connectors.
package transport
