package serializer

import "fmt"

// NewRawSerializer creates the identity serializer: byte values pass through
// in both directions. Strings are converted to their raw bytes on encode.
func NewRawSerializer() IValueSerializer {
	return &rawSerializerImpl{}
}

// rawSerializerImpl implements the IValueSerializer interface as a no-op
type rawSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IValueSerializer)
// --------------------------------------------------------------------------

func (r rawSerializerImpl) Encode(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("raw serializer requires []byte or string, got %T", v)
	}
}

func (r rawSerializerImpl) Decode(b []byte) (any, error) {
	return b, nil
}
