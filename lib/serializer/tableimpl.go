package serializer

import (
	"fmt"

	"github.com/tycoon-kv/tycoon/lib/blob"
)

// NewTableSerializer creates a serializer for table-database records. Values
// are maps of column name to column value, stored as NUL-interleaved bytes.
func NewTableSerializer() IValueSerializer {
	return &tableSerializerImpl{}
}

// tableSerializerImpl implements the IValueSerializer interface for column tables
type tableSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IValueSerializer)
// --------------------------------------------------------------------------

func (t tableSerializerImpl) Encode(v any) ([]byte, error) {
	columns, ok := v.(map[string]string)
	if !ok {
		return nil, fmt.Errorf("table serializer requires map[string]string, got %T", v)
	}
	return blob.EncodeTable(columns), nil
}

func (t tableSerializerImpl) Decode(b []byte) (any, error) {
	return blob.DecodeTable(b), nil
}
