// Package rpc contains the client/server protocol of the database
// service.
//
// The protocol is a framed request/response exchange over a persistent
// stream connection. Each sub-package covers one layer:
//
//   - common: the message structure, configuration and logging setup
//   - serializer: pluggable message encodings (json, gob, binary, bson)
//   - transport: framed stream transports (tcp, unix)
//   - server: serves open databases to remote clients
//   - client: typed client API, including a remote sync source
//
// The layers are composed by injection: a server is built from a
// transport and a serializer, and a client must be configured with the
// matching pair.
package rpc
