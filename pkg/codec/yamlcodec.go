// pkg/codec/yamlcodec.go
package codec

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

var YAML Codec = yamlCodec{}

type yamlCodec struct{}

func (yamlCodec) Marshal(v any) ([]byte, error) {
	data, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(data)
}

func (yamlCodec) Unmarshal(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("yaml decode: %w", err)
	}
	return nil
}

func (yamlCodec) ContentType() string { return "application/x-yaml" }
func (yamlCodec) Format() string      { return "yaml" }
