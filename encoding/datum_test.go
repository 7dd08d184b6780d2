package encoding

import (
	"encoding/json"
	"testing"

	"github.com/maxpert/s3avro/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeCoercesToBranchTypes(t *testing.T) {
	fields := []schema.Field{
		{Name: "i", Type: []string{"null", "int"}},
		{Name: "l", Type: []string{"null", "long"}},
		{Name: "d", Type: []string{"null", "double"}},
		{Name: "f", Type: []string{"null", "float"}},
		{Name: "b", Type: []string{"null", "boolean"}},
		{Name: "s", Type: []string{"null", "string"}},
		{Name: "raw", Type: []string{"null", "bytes"}},
	}

	datum, err := Shape(fields, map[string]any{
		"i":   json.Number("42"),
		"l":   int64(1577836800),
		"d":   json.Number("1.5"),
		"f":   json.Number("2.25"),
		"b":   true,
		"s":   "text",
		"raw": "abc",
	})
	require.NoError(t, err)

	assert.Equal(t, 42, datum["i"])
	assert.Equal(t, int64(1577836800), datum["l"])
	assert.Equal(t, 1.5, datum["d"])
	assert.Equal(t, float32(2.25), datum["f"])
	assert.Equal(t, true, datum["b"])
	assert.Equal(t, "text", datum["s"])
	assert.Equal(t, []byte("abc"), datum["raw"])
}

func TestShapeFillsMissingWithNull(t *testing.T) {
	fields := []schema.Field{
		{Name: "id", Type: []string{"null", "int"}, Default: 0},
		{Name: "gone", Type: []string{"null", "string"}},
	}

	datum, err := Shape(fields, map[string]any{"id": nil, "extra": "ignored"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"id": nil, "gone": nil}, datum)
}

func TestShapeReadsAlias(t *testing.T) {
	fields := []schema.Field{
		{Name: "first_name", Type: []string{"null", "string"}, Alias: "first-name"},
		{Name: "e_mail", Type: []string{"null", "string"}, Alias: "profile__e-mail"},
		{Name: "fallback", Type: []string{"null", "string"}, Alias: "missing"},
	}

	datum, err := Shape(fields, map[string]any{
		"first-name":      "Ada",
		"first_name":      "shadowed",
		"profile__e-mail": "ada@example.com",
		"fallback":        "by name",
	})
	require.NoError(t, err)

	assert.Equal(t, "Ada", datum["first_name"])
	assert.Equal(t, "ada@example.com", datum["e_mail"])
	assert.Equal(t, "by name", datum["fallback"])
}

func TestShapeStringifiesIntoStringFields(t *testing.T) {
	fields := []schema.Field{
		{Name: "n", Type: []string{"null", "string"}},
		{Name: "b", Type: []string{"null", "string"}},
		{Name: "obj", Type: []string{"null", "string"}},
	}

	datum, err := Shape(fields, map[string]any{
		"n":   json.Number("12.50"),
		"b":   false,
		"obj": map[string]any{"k": "v"},
	})
	require.NoError(t, err)

	assert.Equal(t, "12.50", datum["n"])
	assert.Equal(t, "false", datum["b"])
	assert.Equal(t, `{"k":"v"}`, datum["obj"])
}

func TestShapeFirstMatchingBranch(t *testing.T) {
	fields := []schema.Field{{Name: "v", Type: []string{"null", "int", "string"}}}

	datum, err := Shape(fields, map[string]any{"v": json.Number("7")})
	require.NoError(t, err)
	assert.Equal(t, 7, datum["v"])

	datum, err = Shape(fields, map[string]any{"v": json.Number("7.5")})
	require.NoError(t, err)
	assert.Equal(t, "7.5", datum["v"])

	datum, err = Shape(fields, map[string]any{"v": "seven"})
	require.NoError(t, err)
	assert.Equal(t, "seven", datum["v"])
}

func TestShapeRejectsUnencodable(t *testing.T) {
	tests := []struct {
		name  string
		field schema.Field
		value any
	}{
		{"string into int", schema.Field{Name: "v", Type: []string{"null", "int"}}, "1"},
		{"fraction into long", schema.Field{Name: "v", Type: []string{"null", "long"}}, json.Number("1.5")},
		{"int overflow", schema.Field{Name: "v", Type: []string{"null", "int"}}, json.Number("4294967296")},
		{"bool into double", schema.Field{Name: "v", Type: []string{"null", "double"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Shape([]schema.Field{tt.field}, map[string]any{"v": tt.value})
			assert.ErrorIs(t, err, ErrUnencodable)
		})
	}
}

func TestShapeNullOnlyField(t *testing.T) {
	fields := []schema.Field{{Name: "v", Type: []string{"null"}}}

	datum, err := Shape(fields, map[string]any{"v": "anything"})
	require.NoError(t, err)
	assert.Nil(t, datum["v"])
}
