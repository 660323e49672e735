package codec

import "encoding/json"

// ContentTypeJSON is the content-type string registered by JSON().
const ContentTypeJSON = "application/json"

type jsonCodec struct{}

// JSON returns a codec backed by encoding/json (RFC 8259).
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) ContentType() string { return ContentTypeJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
