package common

import "encoding/json"

// --------------------------------------------------------------------------
// Value Encoding
// --------------------------------------------------------------------------

// EncodeValue encodes a single setting value. nil encodes to nil.
func EncodeValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// DecodeValue decodes a value written by EncodeValue.
func DecodeValue(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeValues encodes a batch of values. nil values are kept, they remove
// the key on the receiving side.
func EncodeValues(values map[string]any) ([]byte, error) {
	if values == nil {
		values = map[string]any{}
	}
	return json.Marshal(values)
}

// DecodeValues decodes a batch written by EncodeValues.
func DecodeValues(b []byte) (map[string]any, error) {
	values := map[string]any{}
	if len(b) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// EncodeKeys encodes a key list.
func EncodeKeys(keys []string) ([]byte, error) {
	if keys == nil {
		keys = []string{}
	}
	return json.Marshal(keys)
}

// DecodeKeys decodes a key list written by EncodeKeys.
func DecodeKeys(b []byte) ([]string, error) {
	var keys []string
	if len(b) == 0 {
		return keys, nil
	}
	if err := json.Unmarshal(b, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}
