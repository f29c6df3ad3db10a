// Package codec holds the wire formats responses are serialized into and the
// Serializer that picks one by format name.
package codec

// Codec encodes and decodes one wire format.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	// ContentType is the canonical MIME type of the format.
	ContentType() string
	// Format is the short name used by _format and the serializer.
	Format() string
}
