// Package client implements the typed RPC client of the database
// service.
//
// A client is composed from a transport and a serializer matching the
// server's configuration. After Login, the session token is attached to
// every request automatically:
//
//	c, err := client.NewClient(config, tcp.NewTCPClientTransport())
//	if err != nil {
//		panic(err)
//	}
//	defer c.Close()
//
//	if err := c.Login("operator", "secret"); err != nil {
//		panic(err)
//	}
//	result, err := c.Query("loads", q)
//
// RemoteSource adapts a client to the replica sync Source interface, so
// a follower database can be synchronized from a served source over the
// wire.
package client
