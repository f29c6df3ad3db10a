package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// jsonCodec covers json and the media types that share its syntax.
// Decoding rejects unknown struct fields and trailing documents.
type jsonCodec struct {
	format      string
	contentType string
}

// JSONStrict is the plain application/json codec.
var JSONStrict Codec = jsonCodec{format: "json", contentType: "application/json"}

// NewJSON registers a JSON-syntax format under its own name and MIME type,
// e.g. NewJSON("jsonld", "application/ld+json").
func NewJSON(format, contentType string) Codec {
	return jsonCodec{format: strings.ToLower(format), contentType: contentType}
}

func (c jsonCodec) Marshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%s encode: %w", c.format, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (c jsonCodec) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%s decode: %w", c.format, err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s decode: trailing content", c.format)
	}
	return nil
}

func (c jsonCodec) ContentType() string { return c.contentType }
func (c jsonCodec) Format() string      { return c.format }
