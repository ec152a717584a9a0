package crud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperatorsFor(t *testing.T) {
	testCases := []struct {
		name string
		tag  TypeTag
		want []Operator
	}{
		{name: "text", tag: TypeText, want: []Operator{OpEq, OpLike, OpIn}},
		{name: "integer", tag: TypeInteger, want: []Operator{OpEq, OpIn}},
		{name: "float", tag: TypeFloat, want: []Operator{OpEq}},
		{name: "timestamp", tag: TypeTimestamp, want: []Operator{OpGte, OpLte, OpGt, OpLt}},
		{name: "boolean", tag: TypeBoolean, want: []Operator{OpEq}},
		{name: "unknown falls back to eq", tag: TypeUnknown, want: []Operator{OpEq}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OperatorsFor(tc.tag))
		})
	}
}

func TestEveryOperatorHasSQL(t *testing.T) {
	for tag, ops := range typeOperators {
		for _, op := range ops {
			_, ok := operatorSQL[op]
			assert.True(t, ok, "operator %s of type %s has no SQL translation", op, tag)
		}
	}
}

func TestNativeTypeFor(t *testing.T) {
	assert.Equal(t, NativeInt, NativeTypeFor(TypeInteger))
	assert.Equal(t, NativeTime, NativeTypeFor(TypeTimestamp))
	// unknown coerces as string so equality still works
	assert.Equal(t, NativeString, NativeTypeFor(TypeUnknown))
}

func TestClassifyDataType(t *testing.T) {
	testCases := []struct {
		dataType string
		want     TypeTag
	}{
		{"character varying", TypeText},
		{"uuid", TypeText},
		{"bigint", TypeInteger},
		{"numeric", TypeFloat},
		{"timestamp with time zone", TypeTimestamp},
		{"date", TypeTimestamp},
		{"boolean", TypeBoolean},
		{"jsonb", TypeUnknown},
		{"bytea", TypeUnknown},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, ClassifyDataType(tc.dataType), tc.dataType)
	}
}
