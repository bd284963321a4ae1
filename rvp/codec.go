package rvp

// Codec defines the serialization contract for RVP frames. A codec
// encodes both the envelope and the method payloads carried in Data,
// so a msgpack connection never wraps JSON text.
type Codec interface {
	// Encode serializes a frame envelope to bytes.
	Encode(frame *Frame) ([]byte, error)

	// Decode deserializes bytes into a frame envelope.
	Decode(data []byte) (*Frame, error)

	// EncodePayload serializes a method payload for the Data field.
	EncodePayload(v any) ([]byte, error)

	// DecodePayload deserializes a Data payload into v.
	DecodePayload(data []byte, v any) error

	// Name returns the codec identifier (e.g., "json", "msgpack").
	Name() string
}

// CodecName constants for format negotiation.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to JSON.
func GetCodec(name string) Codec {
	switch name {
	case CodecNameMsgpack:
		return &MsgpackCodec{}
	case CodecNameJSON, "":
		return &JSONCodec{}
	default:
		return &JSONCodec{}
	}
}
