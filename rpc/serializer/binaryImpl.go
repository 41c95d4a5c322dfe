package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dSettings/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType (1 byte), flags (1 byte), followed by the present fields in
// flag order. Strings and byte slices are prefixed with their length as
// uint32, Count is a uint64 and Ok a single byte.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey   byte = 1 << 0
	hasTo    byte = 1 << 1
	hasValue byte = 1 << 2
	hasPrev  byte = 1 << 3
	hasCount byte = 1 << 4
	hasOk    byte = 1 << 5
	hasErr   byte = 1 << 6
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, 2, b.sizeBytes(msg))
	result[0] = byte(msg.MsgType)

	var flags byte
	if msg.Key != "" {
		flags |= hasKey
		result = appendChunk(result, []byte(msg.Key))
	}
	if msg.To != "" {
		flags |= hasTo
		result = appendChunk(result, []byte(msg.To))
	}
	if msg.Value != nil {
		flags |= hasValue
		result = appendChunk(result, msg.Value)
	}
	if msg.Prev != nil {
		flags |= hasPrev
		result = appendChunk(result, msg.Prev)
	}
	if msg.Count > 0 {
		flags |= hasCount
		result = binary.BigEndian.AppendUint64(result, msg.Count)
	}
	if msg.Ok {
		flags |= hasOk
		result = append(result, 1)
	}
	if msg.Err != "" {
		flags |= hasErr
		result = appendChunk(result, []byte(msg.Err))
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

	msg.MsgType = common.MessageType(data[0])
	flags := data[1]
	r := reader{data: data, pos: 2}

	msg.Key = ""
	if flags&hasKey != 0 {
		chunk, err := r.chunk("key")
		if err != nil {
			return err
		}
		msg.Key = string(chunk)
	}

	msg.To = ""
	if flags&hasTo != 0 {
		chunk, err := r.chunk("to")
		if err != nil {
			return err
		}
		msg.To = string(chunk)
	}

	msg.Value = nil
	if flags&hasValue != 0 {
		chunk, err := r.chunk("value")
		if err != nil {
			return err
		}
		msg.Value = append(make([]byte, 0, len(chunk)), chunk...)
	}

	msg.Prev = nil
	if flags&hasPrev != 0 {
		chunk, err := r.chunk("prev")
		if err != nil {
			return err
		}
		msg.Prev = append(make([]byte, 0, len(chunk)), chunk...)
	}

	msg.Count = 0
	if flags&hasCount != 0 {
		if r.pos+8 > len(data) {
			return fmt.Errorf("data too short for count")
		}
		msg.Count = binary.BigEndian.Uint64(data[r.pos : r.pos+8])
		r.pos += 8
	}

	msg.Ok = false
	if flags&hasOk != 0 {
		if r.pos+1 > len(data) {
			return fmt.Errorf("data too short for Ok flag")
		}
		msg.Ok = data[r.pos] != 0
		r.pos++
	}

	msg.Err = ""
	if flags&hasErr != 0 {
		chunk, err := r.chunk("error")
		if err != nil {
			return err
		}
		msg.Err = string(chunk)
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

	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.To != "" {
		size += 4 + len(msg.To)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Prev != nil {
		size += 4 + len(msg.Prev)
	}
	if msg.Count > 0 {
		size += 8
	}
	if msg.Ok {
		size += 1
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}

	return size
}

// appendChunk appends a length prefixed byte slice.
func appendChunk(dst, chunk []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(chunk)))
	return append(dst, chunk...)
}

// reader walks over length prefixed chunks.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) chunk(field string) ([]byte, error) {
	if r.pos+4 > len(r.data) {
		return nil, fmt.Errorf("data too short for %s length", field)
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("data too short for %s data", field)
	}
	chunk := r.data[r.pos : r.pos+n]
	r.pos += n
	return chunk, nil
}
