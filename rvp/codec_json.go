package rvp

import "encoding/json"

// JSONCodec encodes/decodes RVP frames as JSON.
type JSONCodec struct{}

func (c *JSONCodec) Encode(frame *Frame) ([]byte, error) {
	return json.Marshal(frame)
}

func (c *JSONCodec) Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *JSONCodec) EncodePayload(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) DecodePayload(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string { return CodecNameJSON }
