package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersSchema = `{"properties":{"id":{"type":"integer"},"signup":{"type":"string","format":"date-time"}}}`

func TestCompile(t *testing.T) {
	compiled, err := Compile(json.RawMessage(usersSchema), "__")
	require.NoError(t, err)

	require.Len(t, compiled.Fields, 2)
	assert.Equal(t, Field{Name: "id", Type: []string{"null", "int"}, Default: 0}, compiled.Fields[0])
	assert.Equal(t, Field{Name: "signup", Type: []string{"null", "long"}, Default: 0}, compiled.Fields[1])
	assert.Equal(t, []string{"signup"}, compiled.DateFields)
	assert.NotNil(t, compiled.Validator)
	assert.Equal(t, Fingerprint([]byte(usersSchema), "__"), compiled.Fingerprint)
}

func TestCompileInvalid(t *testing.T) {
	_, err := Compile(json.RawMessage(`[1,2]`), "__")
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestCacheHit(t *testing.T) {
	cache, err := NewCache(4)
	require.NoError(t, err)

	first, hit, err := cache.Compile(json.RawMessage(usersSchema), "__")
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := cache.Compile(json.RawMessage(usersSchema), "__")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheKeyIncludesDelimiter(t *testing.T) {
	cache, err := NewCache(4)
	require.NoError(t, err)

	_, _, err = cache.Compile(json.RawMessage(usersSchema), "__")
	require.NoError(t, err)
	_, hit, err := cache.Compile(json.RawMessage(usersSchema), ".")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, cache.Len())

	assert.NotEqual(t, Fingerprint([]byte("ab"), "c"), Fingerprint([]byte("b"), "ca"))
}

func TestCacheEviction(t *testing.T) {
	cache, err := NewCache(1)
	require.NoError(t, err)

	_, _, err = cache.Compile(json.RawMessage(usersSchema), "__")
	require.NoError(t, err)
	_, _, err = cache.Compile(json.RawMessage(`{"properties":{"x":{"type":"string"}}}`), "__")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	_, hit, err := cache.Compile(json.RawMessage(usersSchema), "__")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheErrorsAreNotCached(t *testing.T) {
	cache, err := NewCache(4)
	require.NoError(t, err)

	_, _, err = cache.Compile(json.RawMessage(`nope`), "__")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestNewCacheInvalidSize(t *testing.T) {
	_, err := NewCache(0)
	assert.Error(t, err)
}
