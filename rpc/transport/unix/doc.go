// Package unix provides the unix domain socket implementation of the
// transport layer, useful when client and server share a host (for
// example a follower database syncing from a source on the same
// machine).
package unix
