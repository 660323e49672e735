package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// ContentTypeProtobuf is the content-type string registered by Proto().
const ContentTypeProtobuf = "application/x-protobuf"

type protoCodec struct {
	marshal   proto.MarshalOptions
	unmarshal proto.UnmarshalOptions
}

// Proto returns a codec using deterministic Protocol Buffers encoding.
func Proto() Codec {
	return protoCodec{
		marshal:   proto.MarshalOptions{Deterministic: true},
		unmarshal: proto.UnmarshalOptions{},
	}
}

func (p protoCodec) ContentType() string { return ContentTypeProtobuf }

func (p protoCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec: value does not implement proto.Message: %T", v)
	}
	return p.marshal.Marshal(msg)
}

func (p protoCodec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("codec: target does not implement proto.Message: %T", v)
	}
	return p.unmarshal.Unmarshal(data, msg)
}
