// Package common holds the types shared by the RPC client and server:
// the wire message with its factory functions, the server and client
// configuration structs, and the zap logger setup.
package common
