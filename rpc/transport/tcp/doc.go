// Package tcp provides the TCP implementation of the transport layer,
// including socket tuning (no-delay, buffer sizes, keep-alive) driven
// by the transport configuration.
package tcp
