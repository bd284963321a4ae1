package rvp

import "github.com/vmihailenco/msgpack/v5"

// MsgpackCodec encodes/decodes RVP frames and payloads as MessagePack.
// Preferred for interactive sessions: the packed pixel buffers travel
// as raw binary instead of base64 text.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(frame *Frame) ([]byte, error) {
	return msgpack.Marshal(frame)
}

func (c *MsgpackCodec) Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *MsgpackCodec) EncodePayload(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (c *MsgpackCodec) DecodePayload(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func (c *MsgpackCodec) Name() string { return CodecNameMsgpack }
