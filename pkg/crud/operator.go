// Package crud turns reflected table metadata into routed REST CRUD
// endpoints: view, list, create, update, soft-delete and restore, with
// per-column query-string filtering, multi-key sorting and offset/limit
// pagination translated into parameterized SQL.
package crud

// TypeTag classifies a column's storage type for filter generation.
type TypeTag string

const (
	TypeText      TypeTag = "text"
	TypeInteger   TypeTag = "integer"
	TypeFloat     TypeTag = "float"
	TypeTimestamp TypeTag = "timestamp"
	TypeBoolean   TypeTag = "boolean"
	// TypeUnknown covers storage types with no mapping. Unknown types still
	// get an equality filter with string coercion so schema evolution never
	// breaks route generation.
	TypeUnknown TypeTag = ""
)

// Operator is a filter comparison operator. The set is closed: adding one
// requires a translation entry in operatorSQL and a slot in typeOperators.
type Operator string

const (
	OpEq   Operator = "eq"
	OpLike Operator = "like"
	OpIn   Operator = "in"
	OpGte  Operator = "gte"
	OpLte  Operator = "lte"
	OpGt   Operator = "gt"
	OpLt   Operator = "lt"
)

// NativeType is the value type query parameters coerce to before reaching
// the database driver.
type NativeType int

const (
	NativeString NativeType = iota
	NativeInt
	NativeFloat
	NativeBool
	NativeTime
)

// typeOperators fixes the permitted operator set per storage type.
var typeOperators = map[TypeTag][]Operator{
	TypeText:      {OpEq, OpLike, OpIn},
	TypeInteger:   {OpEq, OpIn},
	TypeFloat:     {OpEq},
	TypeTimestamp: {OpGte, OpLte, OpGt, OpLt},
	TypeBoolean:   {OpEq},
}

// operatorSQL translates an operator to its SQL comparison.
var operatorSQL = map[Operator]string{
	OpEq:   "=",
	OpLike: "ILIKE",
	OpIn:   "IN",
	OpGte:  ">=",
	OpLte:  "<=",
	OpGt:   ">",
	OpLt:   "<",
}

// nativeTypes maps a storage type to its coercion target.
var nativeTypes = map[TypeTag]NativeType{
	TypeText:      NativeString,
	TypeInteger:   NativeInt,
	TypeFloat:     NativeFloat,
	TypeTimestamp: NativeTime,
	TypeBoolean:   NativeBool,
}

// OperatorsFor returns the permitted filter operators for a storage type.
// Unmapped types fall back to equality only.
func OperatorsFor(t TypeTag) []Operator {
	if ops, ok := typeOperators[t]; ok {
		return ops
	}
	return []Operator{OpEq}
}

// NativeTypeFor returns the coercion target for a storage type. Unmapped
// types fall back to string.
func NativeTypeFor(t TypeTag) NativeType {
	if nt, ok := nativeTypes[t]; ok {
		return nt
	}
	return NativeString
}

// ClassifyDataType maps an information_schema data_type string to a TypeTag.
func ClassifyDataType(dataType string) TypeTag {
	switch dataType {
	case "text", "character varying", "character", "citext", "uuid", "name":
		return TypeText
	case "smallint", "integer", "bigint", "smallserial", "serial", "bigserial":
		return TypeInteger
	case "real", "double precision", "numeric", "decimal", "money":
		return TypeFloat
	case "timestamp with time zone", "timestamp without time zone", "date":
		return TypeTimestamp
	case "boolean":
		return TypeBoolean
	default:
		return TypeUnknown
	}
}
