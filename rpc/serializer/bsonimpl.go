package serializer

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/feaforge/lrdb/rpc/common"
)

// NewBSONSerializer creates a new serializer using BSON encoding
func NewBSONSerializer() IRPCSerializer {
	return &bsonSerializerImpl{}
}

// bsonSerializerImpl implements the IRPCSerializer interface using bson encoding
type bsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (s bsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return bson.Marshal(msg)
}

func (s bsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	return bson.Unmarshal(b, msg)
}
