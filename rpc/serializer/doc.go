// Package serializer turns common.Message values into bytes and back. The
// transport layer only moves opaque byte slices, so client and server must be
// configured with the same serializer.
//
// Three implementations are available through ByName:
//
//   - "json": encoding/json. Readable on the wire, handy when inspecting
//     requests with curl.
//   - "gob": encoding/gob. Self describing but the largest payloads of the
//     three.
//   - "binary": a flag byte marks which optional fields follow, so empty keys,
//     values and errors cost nothing. Smallest and fastest; use it in
//     production.
//
// The setting values inside a message are already JSON (see
// common.EncodeValue), whichever serializer frames them.
//
// Serializers keep no state and can be shared between goroutines:
//
//	s, err := serializer.ByName("binary")
//	data, err := s.Serialize(common.NewFetchValueRequest("window.width"))
//	var resp common.Message
//	err = s.Deserialize(reply, &resp)
package serializer
