package serializer

import (
	"encoding/json"
)

// NewJSONSerializer creates a new serializer using compact json encoding
func NewJSONSerializer() IValueSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IValueSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IValueSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (j jsonSerializerImpl) Decode(b []byte) (any, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}
