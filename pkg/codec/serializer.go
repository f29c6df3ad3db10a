// pkg/codec/serializer.go
package codec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned for formats no codec is registered for.
var ErrUnsupportedFormat = errors.New("codec: unsupported format")

// Serializer picks a codec by format name. Immutable after construction.
type Serializer struct {
	order  []string
	codecs map[string]Codec
}

// NewSerializer registers codecs in order; the first one is the default format.
func NewSerializer(cs ...Codec) *Serializer {
	s := &Serializer{codecs: make(map[string]Codec, len(cs))}
	for _, c := range cs {
		f := strings.ToLower(c.Format())
		if _, dup := s.codecs[f]; dup {
			continue
		}
		s.codecs[f] = c
		s.order = append(s.order, f)
	}
	return s
}

// DefaultSerializer knows json, xml and yaml, with json as default.
func DefaultSerializer() *Serializer { return NewSerializer(JSONStrict, XML, YAML) }

func (s *Serializer) Codec(format string) (Codec, bool) {
	c, ok := s.codecs[strings.ToLower(format)]
	return c, ok
}

func (s *Serializer) Supports(format string) bool {
	_, ok := s.Codec(format)
	return ok
}

// Formats lists registered formats in registration order.
func (s *Serializer) Formats() []string { return append([]string(nil), s.order...) }

// FormatFor finds the registered format whose codec emits contentType.
// Parameters such as charset are ignored.
func (s *Serializer) FormatFor(contentType string) (string, bool) {
	ct, _, _ := strings.Cut(contentType, ";")
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" {
		return "", false
	}
	for _, f := range s.order {
		if strings.EqualFold(s.codecs[f].ContentType(), ct) {
			return f, true
		}
	}
	return "", false
}

// DefaultFormat is the first registered format, or "" when empty.
func (s *Serializer) DefaultFormat() string {
	if len(s.order) == 0 {
		return ""
	}
	return s.order[0]
}

func (s *Serializer) Serialize(v any, format string) ([]byte, error) {
	c, ok := s.Codec(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return c.Marshal(v)
}

func (s *Serializer) Deserialize(data []byte, format string, v any) error {
	c, ok := s.Codec(format)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return c.Unmarshal(data, v)
}

// WithDefault returns a serializer with the same codecs where format is the
// default. It fails when no codec is registered for format.
func (s *Serializer) WithDefault(format string) (*Serializer, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		return s, nil
	}
	if !s.Supports(f) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	order := make([]string, 0, len(s.order))
	order = append(order, f)
	for _, o := range s.order {
		if o != f {
			order = append(order, o)
		}
	}
	return &Serializer{order: order, codecs: s.codecs}, nil
}
