package serializer

import "fmt"

// NewTextSerializer creates a serializer for UTF-8 text values. Strings are
// encoded as their UTF-8 bytes, byte values pass through; decoding always
// yields a string.
func NewTextSerializer() IValueSerializer {
	return &textSerializerImpl{}
}

// textSerializerImpl implements the IValueSerializer interface for UTF-8 text
type textSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IValueSerializer)
// --------------------------------------------------------------------------

func (t textSerializerImpl) Encode(v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	default:
		return nil, fmt.Errorf("text serializer requires string or []byte, got %T", v)
	}
}

func (t textSerializerImpl) Decode(b []byte) (any, error) {
	return string(b), nil
}
