package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dSettings/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding. Values and
// batches are already JSON and travel base64 encoded inside the message.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	if !msg.MsgType.Valid() {
		return nil, fmt.Errorf("json serializer: cannot encode message type %d", msg.MsgType)
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json serializer: encoding %s message: %w", msg.MsgType, err)
	}
	return b, nil
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// omitted fields must not keep values of a reused message
	*msg = common.Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("json serializer: decoding message: %w", err)
	}
	if !msg.MsgType.Valid() {
		return fmt.Errorf("json serializer: message without type")
	}
	return nil
}
