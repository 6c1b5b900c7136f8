package cache

import (
	"bytes"
	"encoding/json"
)

// Serializer 值与存储字节之间的编解码
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
	Name() string
}

// JSONSerializer 默认编码；不转义 HTML，摘要里的 filter 值原样落盘
type JSONSerializer struct{}

func NewJSONSerializer() *JSONSerializer { return &JSONSerializer{} }

func (JSONSerializer) Name() string { return "json" }

func (JSONSerializer) Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, ErrSerialize.Wrap(err)
	}
	// Encode 总会追加换行
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (JSONSerializer) Deserialize(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrDeserialize.WithMsg("empty payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ErrDeserialize.Wrap(err)
	}
	return nil
}
