package serializer

import (
	"bytes"
	"encoding/gob"
)

func init() {
	// register the container types commonly stored through the opaque codec;
	// callers with their own types use Register
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(map[string]string{})
	gob.Register([]string{})
}

// Register makes a concrete type known to the gob serializer. Values of
// unregistered user-defined types cannot round-trip through Encode/Decode.
func Register(v any) {
	gob.Register(v)
}

// NewGobSerializer creates a serializer for opaque structured blobs using
// Go's gob format. Round trips are guaranteed for any registered type.
func NewGobSerializer() IValueSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the IValueSerializer interface using gob encoding
type gobSerializerImpl struct {
}

// gobValue wraps the dynamic value so gob records its concrete type
type gobValue struct {
	V any
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IValueSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(gobValue{V: v}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Decode(b []byte) (any, error) {
	dec := gob.NewDecoder(bytes.NewBuffer(b))
	var wrapped gobValue
	if err := dec.Decode(&wrapped); err != nil {
		return nil, err
	}
	return wrapped.V, nil
}
