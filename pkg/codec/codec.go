// Package codec provides pluggable marshaling for the opaque payload
// bytes carried inside a message body, selected by content-type the way
// cmd/grpc-homa-server's handler picks one out of the initial metadata.
package codec

// Codec marshals and unmarshals typed values to and from wire bytes for
// one content type. Implementations must be deterministic and safe for
// cross-process exchange.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry looks up a Codec by the content-type string a caller read off
// the wire (typically out of a metadata batch).
type Registry struct{ byType map[string]Codec }

// NewRegistry constructs a registry preloaded with the codecs that need
// no fallible initialization: JSON and Protobuf. CBOR returns an error
// from its constructor and must be added explicitly via Register(CBOR()).
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Codec)}
	r.Register(JSON())
	r.Register(Proto())
	return r
}

// Register adds or replaces the codec for its own ContentType().
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns the codec registered for contentType, or nil if none is.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }

// GetOrDefault returns the codec for contentType, falling back to
// fallback when contentType is unregistered or empty. It returns nil
// only when fallback is itself unregistered.
func (r *Registry) GetOrDefault(contentType, fallback string) Codec {
	if c := r.Get(contentType); c != nil {
		return c
	}
	return r.Get(fallback)
}
