package serializer

import (
	"github.com/vmihailenco/msgpack/v5"
)

// NewMsgPackSerializer creates a new serializer using the msgpack format,
// which is compact on the wire and language neutral
func NewMsgPackSerializer() IValueSerializer {
	return &msgpackSerializerImpl{}
}

// msgpackSerializerImpl implements the IValueSerializer interface using msgpack
type msgpackSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IValueSerializer)
// --------------------------------------------------------------------------

func (m msgpackSerializerImpl) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (m msgpackSerializerImpl) Decode(b []byte) (any, error) {
	var v any
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}
