// Package server implements the RPC server of the database service.
//
// A server holds a registry of open databases (one per subdirectory of
// the configured data directory), a user registry for authentication,
// and a shared writer lock manager. Incoming messages are deserialized,
// authorized against the caller's session capability and dispatched to
// the corresponding database operation; the typed error of a failed
// operation travels back to the client with its code intact.
//
// The server is composed from a transport and a serializer:
//
//	s, err := server.NewRPCServer(
//		config,
//		tcp.NewTCPServerTransport(config),
//		serializer.NewBinarySerializer(),
//	)
//	if err != nil {
//		panic(err)
//	}
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
package server
