package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/feaforge/lrdb/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasToken    byte = 1 << 0
	hasDatabase byte = 1 << 1
	hasBatch    byte = 1 << 2
	hasColumn   byte = 1 << 3
	hasName     byte = 1 << 4
	hasPayload  byte = 1 << 5
	hasOk       byte = 1 << 6
	hasErr      byte = 1 << 7 // covers ErrCode and Err
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	result := make([]byte, totalSize)

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	// Set position for writing
	pos := 2 // Start after MsgType and flags

	writeString := func(flag byte, s string) {
		if s == "" {
			return
		}
		flags |= flag
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(s)))
		pos += 4
		copy(result[pos:pos+len(s)], s)
		pos += len(s)
	}

	writeString(hasToken, msg.Token)
	writeString(hasDatabase, msg.Database)
	writeString(hasBatch, msg.Batch)
	writeString(hasColumn, msg.Column)
	writeString(hasName, msg.Name)

	// Handle Payload
	if msg.Payload != nil {
		flags |= hasPayload
		payloadLen := len(msg.Payload)

		// Write payload length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(payloadLen))
		pos += 4

		// Write payload data
		if payloadLen > 0 {
			copy(result[pos:pos+payloadLen], msg.Payload)
			pos += payloadLen
		}
	}

	// Handle Ok
	if msg.Ok {
		flags |= hasOk
		result[pos] = 1
		pos += 1
	}

	// Handle ErrCode and Err together
	if msg.Err != "" {
		flags |= hasErr

		// Write error code
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.ErrCode)
		pos += 8

		// Write error length and data
		errBytes := []byte(msg.Err)
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(errBytes)))
		pos += 4
		copy(result[pos:pos+len(errBytes)], errBytes)
		pos += len(errBytes)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := data[1]

	// Initialize read position
	pos := 2

	readString := func(flag byte, field string) (string, error) {
		if flags&flag == 0 {
			return "", nil
		}
		if pos+4 > len(data) {
			return "", fmt.Errorf("data too short for %s length", field)
		}
		n := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
		if pos+int(n) > len(data) {
			return "", fmt.Errorf("data too short for %s data", field)
		}
		s := string(data[pos : pos+int(n)])
		pos += int(n)
		return s, nil
	}

	var err error
	if msg.Token, err = readString(hasToken, "token"); err != nil {
		return err
	}
	if msg.Database, err = readString(hasDatabase, "database"); err != nil {
		return err
	}
	if msg.Batch, err = readString(hasBatch, "batch"); err != nil {
		return err
	}
	if msg.Column, err = readString(hasColumn, "column"); err != nil {
		return err
	}
	if msg.Name, err = readString(hasName, "name"); err != nil {
		return err
	}

	// Read Payload if present
	if flags&hasPayload != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for payload length")
		}

		// Read payload length
		payloadLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(payloadLen) > len(data) {
			return fmt.Errorf("data too short for payload data")
		}

		// Read payload data - create an empty slice (not nil) if length is 0
		// Allocate only if needed
		if msg.Payload == nil || cap(msg.Payload) < int(payloadLen) {
			msg.Payload = make([]byte, payloadLen)
		} else {
			msg.Payload = msg.Payload[:payloadLen]
		}

		if payloadLen > 0 {
			copy(msg.Payload, data[pos:pos+int(payloadLen)])
		}
		pos += int(payloadLen)
	} else {
		msg.Payload = nil
	}

	// Read Ok if present
	if flags&hasOk != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for Ok flag")
		}

		msg.Ok = data[pos] != 0
		pos += 1
	} else {
		msg.Ok = false
	}

	// Read ErrCode and Err if present
	if flags&hasErr != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for error code")
		}
		msg.ErrCode = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8

		if msg.Err, err = readString(hasErr, "error"); err != nil {
			return err
		}
	} else {
		msg.ErrCode = 0
		msg.Err = ""
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	// Add sizes for fields that require length encoding
	for _, s := range []string{msg.Token, msg.Database, msg.Batch, msg.Column, msg.Name} {
		if s != "" {
			size += 4 + len(s) // 4 bytes for length + string
		}
	}
	if msg.Payload != nil {
		size += 4 + len(msg.Payload) // 4 bytes for length + payload bytes
	}
	if msg.Ok {
		size += 1 // 1 byte for boolean
	}
	if msg.Err != "" {
		size += 8 + 4 + len(msg.Err) // 8 bytes for code + 4 bytes for length + error string
	}

	return size
}
