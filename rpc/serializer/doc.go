// Package serializer provides message serialization for the database
// RPC system. It defines a common interface and multiple implementations
// for serializing and deserializing messages between client and server.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations
//     must satisfy.
//
//   - binarySerializerImpl: Custom binary format optimized for speed and
//     space efficiency. Uses a flag-based approach to encode only present
//     fields, which matters for column transfers where the payload
//     dominates the message.
//
//   - jsonSerializerImpl: JSON encoding, useful for debugging or
//     interoperability with other systems.
//
//   - gobSerializerImpl: Go's built-in gob encoding.
//
//   - bsonSerializerImpl: BSON encoding, convenient when messages are
//     archived in or inspected by document tooling.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent
//	use across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the
//	application:
//
//	  s := serializer.NewBinarySerializer()
//	  data, err := s.Serialize(message)
//	  // ... send data ...
//	  var receivedMsg common.Message
//	  err = s.Deserialize(receivedData, &receivedMsg)
package serializer
