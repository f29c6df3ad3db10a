// pkg/codec/xmlcodec.go
package codec

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// XML encodes normalized data under a <response> root. Map keys become
// elements; list entries and keys that are not valid names become <item key="...">.
var XML Codec = xmlCodec{root: "response"}

type xmlCodec struct{ root string }

var xmlName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

func (c xmlCodec) Marshal(v any) ([]byte, error) {
	data, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(buf)
	if err := writeXML(enc, xml.StartElement{Name: xml.Name{Local: c.root}}, data); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (xmlCodec) Unmarshal([]byte, any) error {
	return fmt.Errorf("%w: xml decode", ErrUnsupportedFormat)
}

func (xmlCodec) ContentType() string { return "text/xml" }
func (xmlCodec) Format() string      { return "xml" }

func writeXML(enc *xml.Encoder, start xml.StartElement, v any) error {
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := writeXML(enc, childElement(k), t[k]); err != nil {
				return err
			}
		}
	case []any:
		for i, x := range t {
			if err := writeXML(enc, itemElement(strconv.Itoa(i)), x); err != nil {
				return err
			}
		}
	case string:
		if err := enc.EncodeToken(xml.CharData(t)); err != nil {
			return err
		}
	case bool, int64, float64:
		if err := enc.EncodeToken(xml.CharData(fmt.Sprint(t))); err != nil {
			return err
		}
	default:
		return fmt.Errorf("xml encode: unsupported value %T", v)
	}
	return enc.EncodeToken(start.End())
}

func childElement(key string) xml.StartElement {
	if xmlName.MatchString(key) {
		return xml.StartElement{Name: xml.Name{Local: key}}
	}
	return itemElement(key)
}

func itemElement(key string) xml.StartElement {
	return xml.StartElement{
		Name: xml.Name{Local: "item"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "key"}, Value: key}},
	}
}
