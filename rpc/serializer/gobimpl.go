package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ValentinKolb/dSettings/rpc/common"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() IRPCSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the IRPCSerializer interface using gob encoding.
// Every message is a self-contained gob stream including its type info.
type gobSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	if !msg.MsgType.Valid() {
		return nil, fmt.Errorf("gob serializer: cannot encode message type %d", msg.MsgType)
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(msg); err != nil {
		return nil, fmt.Errorf("gob serializer: encoding %s message: %w", msg.MsgType, err)
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// gob skips zero fields, so a reused message would keep stale values
	*msg = common.Message{}
	dec := gob.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(msg); err != nil {
		return fmt.Errorf("gob serializer: decoding message: %w", err)
	}
	if !msg.MsgType.Valid() {
		return fmt.Errorf("gob serializer: unknown message type %d", msg.MsgType)
	}
	return nil
}
