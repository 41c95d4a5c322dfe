package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   string `json:"key,omitempty"`   // Used for: SetValue, FetchValue, KeyChanged (old key), ValueChanged, Describe (response)
	To    string `json:"to,omitempty"`    // Used for: KeyChanged (new key), Describe (response)
	Value []byte `json:"value,omitempty"` // JSON encoded value or batch, nil means no value
	Prev  []byte `json:"prev,omitempty"`  // Used for: ValueChanged (previous value)

	// Response only fields
	Count uint64 `json:"count,omitempty"` // Used for: Load, Save responses
	Ok    bool   `json:"ok,omitempty"`    // Used for: FetchValue responses
	Err   string `json:"err,omitempty"`   // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSetValueRequest creates a new SetValue request
func NewSetValueRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTSetValue,
		Key:     key,
		Value:   value,
	}
}

// NewSetValuesRequest creates a new SetValues request, values is an encoded batch
func NewSetValuesRequest(values []byte) *Message {
	return &Message{
		MsgType: MsgTSetValues,
		Value:   values,
	}
}

// NewFetchValueRequest creates a new FetchValue request
func NewFetchValueRequest(key string) *Message {
	return &Message{
		MsgType: MsgTFetchValue,
		Key:     key,
	}
}

// NewFetchValueResponse creates a new FetchValue response
func NewFetchValueResponse(value []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTFetchValue,
		Value:   value,
		Ok:      ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewFetchValuesRequest creates a new FetchValues request, keys is an encoded key list
func NewFetchValuesRequest(keys []byte) *Message {
	return &Message{
		MsgType: MsgTFetchValues,
		Value:   keys,
	}
}

// NewFetchAllRequest creates a new FetchAll request
func NewFetchAllRequest() *Message {
	return &Message{
		MsgType: MsgTFetchAll,
	}
}

// NewValuesResponse creates a response carrying an encoded batch
func NewValuesResponse(msgType MessageType, values []byte, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Value:   values,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewKeyChangedRequest creates a new KeyChanged request
func NewKeyChangedRequest(from, to string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKeyChanged,
		Key:     from,
		To:      to,
		Value:   value,
	}
}

// NewValueChangedRequest creates a new ValueChanged request
func NewValueChangedRequest(key string, prev, value []byte) *Message {
	return &Message{
		MsgType: MsgTValueChanged,
		Key:     key,
		Prev:    prev,
		Value:   value,
	}
}

// NewLoadRequest creates a new Load request
func NewLoadRequest() *Message {
	return &Message{
		MsgType: MsgTLoad,
	}
}

// NewSaveRequest creates a new Save request
func NewSaveRequest() *Message {
	return &Message{
		MsgType: MsgTSave,
	}
}

// NewCountResponse creates a Load or Save response
func NewCountResponse(msgType MessageType, count int, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Count:   uint64(max(count, 0)),
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewDescribeRequest creates a new Describe request
func NewDescribeRequest() *Message {
	return &Message{
		MsgType: MsgTDescribe,
	}
}

// NewDescribeResponse creates a new Describe response
func NewDescribeResponse(typeName, url string) *Message {
	return &Message{
		MsgType: MsgTDescribe,
		Key:     typeName,
		To:      url,
	}
}

// NewResponse creates a response without payload
func NewResponse(msgType MessageType, err error) *Message {
	msg := &Message{
		MsgType: msgType,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:      "success",
	MsgTError:        "error",
	MsgTSetValue:     "setValue",
	MsgTSetValues:    "setValues",
	MsgTFetchValue:   "fetchValue",
	MsgTFetchValues:  "fetchValues",
	MsgTFetchAll:     "fetchAll",
	MsgTKeyChanged:   "keyChanged",
	MsgTValueChanged: "valueChanged",
	MsgTLoad:         "load",
	MsgTSave:         "save",
	MsgTDescribe:     "describe",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	_, ok := messageTypeNames[t]
	return ok
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IPersistor operations

	MsgTSetValue     // Store a single value
	MsgTSetValues    // Store a batch of values
	MsgTFetchValue   // Read a single value
	MsgTFetchValues  // Read a batch of values
	MsgTFetchAll     // Read everything
	MsgTKeyChanged   // A key was renamed
	MsgTValueChanged // An observer changed a value

	// ISaveLoadable operations

	MsgTLoad // Reload the shard from its storage
	MsgTSave // Persist the shard

	// Meta operations

	MsgTDescribe // Report the type and URL of the shard's backend
)
