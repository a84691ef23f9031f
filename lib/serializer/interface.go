package serializer

import "fmt"

// IValueSerializer is the interface for all value serializers. A serializer
// converts application values to the opaque byte strings stored on the
// server and back.
type IValueSerializer interface {
	// Encode serializes a value into a byte array
	// It returns the serialized byte array and an error if any
	Encode(v any) ([]byte, error)
	// Decode deserializes a byte array back into a value
	// It returns the decoded value and an error if any
	Decode(b []byte) (any, error)
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Serializer names accepted by Lookup (and by the CLI / config layer).
const (
	SerializerRaw     = "raw"
	SerializerText    = "text"
	SerializerJSON    = "json"
	SerializerMsgPack = "msgpack"
	SerializerGob     = "gob"
	SerializerTable   = "table"
)

// Lookup returns the serializer registered under name
func Lookup(name string) (IValueSerializer, error) {
	switch name {
	case SerializerRaw:
		return NewRawSerializer(), nil
	case SerializerText:
		return NewTextSerializer(), nil
	case SerializerJSON:
		return NewJSONSerializer(), nil
	case SerializerMsgPack:
		return NewMsgPackSerializer(), nil
	case SerializerGob:
		return NewGobSerializer(), nil
	case SerializerTable:
		return NewTableSerializer(), nil
	default:
		return nil, fmt.Errorf("unrecognized serializer %q - use one of: %s, %s, %s, %s, %s, %s",
			name, SerializerRaw, SerializerText, SerializerJSON, SerializerMsgPack, SerializerGob, SerializerTable)
	}
}
