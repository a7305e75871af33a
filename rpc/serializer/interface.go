package serializer

import (
	"fmt"

	"github.com/feaforge/lrdb/rpc/common"
)

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
}

// ByName resolves a serializer from its configuration name.
func ByName(name string) (IRPCSerializer, error) {
	switch name {
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	case "binary", "":
		return NewBinarySerializer(), nil
	case "bson":
		return NewBSONSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer: %s (must be one of json, gob, binary, bson)", name)
	}
}
