package schema

// Avro type names used in flattened type sets
const (
	AvroNull    = "null"
	AvroInt     = "int"
	AvroLong    = "long"
	AvroFloat   = "float"
	AvroDouble  = "double"
	AvroString  = "string"
	AvroBoolean = "boolean"
	AvroBytes   = "bytes"
)

// JSON schema keywords the flattener acts on
const (
	TypeObject  = "object"
	TypeDict    = "dict"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNull    = "null"
	TypeInteger = "integer"
	TypeNumber  = "number"

	FormatDateTime = "date-time"

	InclusionAutomatic   = "automatic"
	InclusionUnsupported = "unsupported"
)

// primitiveMapping is the Avro type and default for a JSON primitive
type primitiveMapping struct {
	avro string
	def  any
}

var primitives = map[string]primitiveMapping{
	TypeInteger: {avro: AvroInt, def: 0},
	TypeNumber:  {avro: AvroDouble, def: 0.0},
}

// mapPrimitive returns the Avro type name and default for a JSON primitive.
// Unmapped names pass through with a nil default.
func mapPrimitive(t string) (string, any) {
	if m, ok := primitives[t]; ok {
		return m.avro, m.def
	}
	return t, nil
}
