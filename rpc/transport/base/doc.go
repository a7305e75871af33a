// Package base implements the medium-independent core of the transport
// layer: request framing, the multiplexing client with retries and
// reconnects, and the server side with a per-connection worker pool.
//
// Medium-specific behavior (dialing, listening, socket tuning) is
// injected through the IClientConnector and IServerConnector
// interfaces; see the tcp and unix packages for the implementations.
package base
