package schema

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Compiled holds everything derived from one SCHEMA announcement that does
// not depend on the stream name
type Compiled struct {
	Fingerprint uint64
	Fields      []Field
	DateFields  []string
	Validator   *Validator
}

// Cache memoizes compiled schemas. Taps re-announce identical schemas often.
type Cache struct {
	entries *lru.Cache[uint64, *Compiled]
}

// NewCache creates a cache holding up to size compiled schemas
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[uint64, *Compiled](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Fingerprint identifies a raw schema flattened with a given delimiter
func Fingerprint(raw []byte, delimiter string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(delimiter)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(raw)
	return d.Sum64()
}

// Compile flattens and compiles raw, reusing a cached result when the same
// bytes were compiled before. The second return value reports a cache hit.
func (c *Cache) Compile(raw json.RawMessage, delimiter string) (*Compiled, bool, error) {
	fp := Fingerprint(raw, delimiter)
	if compiled, ok := c.entries.Get(fp); ok {
		return compiled, true, nil
	}

	compiled, err := Compile(raw, delimiter)
	if err != nil {
		return nil, false, err
	}

	c.entries.Add(fp, compiled)
	return compiled, false, nil
}

// Len returns the number of cached schemas
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Compile flattens and compiles raw without caching
func Compile(raw json.RawMessage, delimiter string) (*Compiled, error) {
	var doc struct {
		Properties Properties `json:"properties"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	flat, err := Flatten(doc.Properties, delimiter)
	if err != nil {
		return nil, err
	}

	validator, err := NewValidator(raw)
	if err != nil {
		return nil, err
	}

	return &Compiled{
		Fingerprint: Fingerprint(raw, delimiter),
		Fields:      flat.Fields,
		DateFields:  flat.DateFields,
		Validator:   validator,
	}, nil
}
