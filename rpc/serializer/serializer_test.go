package serializer

import (
	"bytes"
	"encoding/gob"
	"reflect"
	"strings"
	"testing"

	"github.com/ValentinKolb/dSettings/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// SetValue request
		{
			MsgType: common.MsgTSetValue,
			Key:     "app.theme",
			Value:   []byte(`"dark"`),
		},

		// FetchValue response
		{
			MsgType: common.MsgTFetchValue,
			Key:     "app.volume",
			Value:   []byte(`7`),
			Ok:      true,
		},

		// Save response
		{
			MsgType: common.MsgTSave,
			Count:   42,
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},

		// Message with all fields filled
		{
			MsgType: common.MsgTValueChanged,
			Key:     "app.theme",
			To:      "app.color_theme",
			Value:   []byte(`"light"`),
			Prev:    []byte(`"dark"`),
			Count:   1,
			Ok:      true,
			Err:     "",
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// MsgTUnknown is rejected by the JSON and GOB serializers
			for msgType := common.MsgTSuccess; msgType <= common.MsgTDescribe; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestEncodedBatches sends encoded setting values through every serializer
func TestEncodedBatches(t *testing.T) {
	values := map[string]any{
		"app.theme":   "dark",
		"app.volume":  float64(7),
		"app.enabled": true,
		"app.tags":    []any{"a", "b"},
		"app.removed": nil,
	}
	batch, err := common.EncodeValues(values)
	if err != nil {
		t.Fatalf("Failed to encode values: %v", err)
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(*common.NewSetValuesRequest(batch))
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			decoded, err := common.DecodeValues(result.Value)
			if err != nil {
				t.Fatalf("Failed to decode values: %v", err)
			}
			if !reflect.DeepEqual(values, decoded) {
				t.Errorf("Values don't match:\nExpected: %v\nGot: %v", values, decoded)
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Message with empty strings and zero values",
			msg: common.Message{
				MsgType: common.MsgTSetValue,
				Key:     "",
				Value:   []byte{},
				Prev:    []byte{},
				Ok:      false,
				Err:     "",
			},
		},
		{
			name: "Message with empty strings but Ok=true",
			msg: common.Message{
				MsgType: common.MsgTFetchValue,
				Ok:      true,
			},
		},
		{
			name: "Message with empty value slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTSetValue,
				Key:     "app.theme",
				Value:   []byte{},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			// Prefill the target to check that every field is overwritten
			result := common.Message{Key: "stale", To: "stale", Value: []byte("stale"), Count: 9, Err: "stale"}
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if tc.msg.Key != result.Key || tc.msg.To != result.To {
				t.Errorf("Key mismatch: expected '%s'/'%s', got '%s'/'%s'", tc.msg.Key, tc.msg.To, result.Key, result.To)
			}
			if tc.msg.Count != result.Count {
				t.Errorf("Count mismatch: expected %d, got %d", tc.msg.Count, result.Count)
			}
			if tc.msg.Ok != result.Ok {
				t.Errorf("Ok mismatch: expected %v, got %v", tc.msg.Ok, result.Ok)
			}
			if tc.msg.Err != result.Err {
				t.Errorf("Err mismatch: expected '%s', got '%s'", tc.msg.Err, result.Err)
			}
			if tc.msg.MsgType != result.MsgType {
				t.Errorf("MsgType mismatch: expected %v, got %v", tc.msg.MsgType, result.MsgType)
			}

			// nil and empty byte slices are distinct
			if (tc.msg.Value == nil) != (result.Value == nil) || !bytes.Equal(tc.msg.Value, result.Value) {
				t.Errorf("Value mismatch: expected %#v, got %#v", tc.msg.Value, result.Value)
			}
			if (tc.msg.Prev == nil) != (result.Prev == nil) || !bytes.Equal(tc.msg.Prev, result.Prev) {
				t.Errorf("Prev mismatch: expected %#v, got %#v", tc.msg.Prev, result.Prev)
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1}, // Only message type, no flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for key",
			data:        []byte{1, hasKey, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims key length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, hasValue, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Truncated count",
			data:        []byte{1, hasCount, 0, 0, 0},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestDeserializeResetsMessage decodes into a reused message. Fields absent
// from the encoded message must not keep their old values.
func TestDeserializeResetsMessage(t *testing.T) {
	msg := common.Message{MsgType: common.MsgTFetchValue, Key: "app.theme"}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()
			data, err := serializer.Serialize(msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			result := common.Message{To: "stale", Value: []byte("stale"), Prev: []byte("stale"), Count: 9, Ok: true, Err: "stale"}
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if !reflect.DeepEqual(msg, result) {
				t.Errorf("Stale fields survived:\nExpected: %+v\nGot: %+v", msg, result)
			}
		})
	}
}

// TestInvalidMessageType checks that the JSON and GOB serializers refuse
// messages without a known type in both directions
func TestInvalidMessageType(t *testing.T) {
	for _, name := range []string{"JSON", "GOB"} {
		t.Run(name, func(t *testing.T) {
			serializer := testSerializers[name]()

			for _, msgType := range []common.MessageType{common.MsgTUnknown, common.MsgTDescribe + 1} {
				if _, err := serializer.Serialize(common.Message{MsgType: msgType}); err == nil {
					t.Errorf("Expected error serializing message type %d", msgType)
				}
			}

			var msg common.Message
			if err := serializer.Deserialize([]byte("not a message"), &msg); err == nil {
				t.Errorf("Expected error for corrupt data")
			} else if !strings.Contains(err.Error(), strings.ToLower(name)+" serializer") {
				t.Errorf("Expected error to name the serializer, got: %v", err)
			}
		})
	}

	t.Run("JSONMissingType", func(t *testing.T) {
		var msg common.Message
		if err := NewJSONSerializer().Deserialize([]byte(`{"key":"app.theme"}`), &msg); err == nil {
			t.Errorf("Expected error for message without type")
		}
	})

	t.Run("GOBUnknownType", func(t *testing.T) {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(common.Message{MsgType: common.MsgTDescribe + 1, Key: "app.theme"}); err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}
		var msg common.Message
		if err := NewGOBSerializer().Deserialize(buf.Bytes(), &msg); err == nil {
			t.Errorf("Expected error for unknown message type")
		}
	})
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "gob", "binary"} {
		if _, err := ByName(name); err != nil {
			t.Errorf("Expected serializer %s, got error: %v", name, err)
		}
	}
	if _, err := ByName("xml"); err == nil {
		t.Errorf("Expected error for unknown serializer")
	}
}
