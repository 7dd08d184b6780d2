package stream

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hamba/avro/v2/ocf"
	"github.com/maxpert/s3avro/encoding"
	"github.com/maxpert/s3avro/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersSchema = `{"properties":{"id":{"type":"integer"},"signup":{"type":"string","format":"date-time"}}}`

func announcement(t *testing.T, name, raw string) Announcement {
	t.Helper()
	compiled, err := schema.Compile(json.RawMessage(raw), "__")
	require.NoError(t, err)
	return Announcement{
		Name:          name,
		Schema:        json.RawMessage(raw),
		KeyProperties: []string{"id"},
		Compiled:      compiled,
	}
}

func countRecords(t *testing.T, path string) (int, map[string][]byte) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec, err := ocf.NewDecoder(f)
	require.NoError(t, err)

	n := 0
	for dec.HasNext() {
		var v map[string]any
		require.NoError(t, dec.Decode(&v))
		n++
	}
	require.NoError(t, dec.Error())
	return n, dec.Metadata()
}

func TestAnnounceWritesFiles(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir, "-20200101T000000", encoding.WriterOptions{
		Metadata: map[string]string{MetaRunID: "run-1"},
	})

	state, err := reg.Announce(announcement(t, "users", usersSchema))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "users-20200101T000000.avsc"), state.SidecarPath)
	assert.Equal(t, filepath.Join(dir, "users-20200101T000000.avro"), state.DataPath)
	assert.Equal(t, []string{"id"}, state.KeyProperties)
	assert.FileExists(t, state.SidecarPath)
	assert.FileExists(t, state.DataPath)

	got, ok := reg.Get("users")
	require.True(t, ok)
	assert.Same(t, state, got)
	assert.Equal(t, 1, reg.Len())

	_, ok = reg.Get("orders")
	assert.False(t, ok)
}

func TestAppendAndFinalize(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir, "", encoding.WriterOptions{
		Codec:    encoding.CodecDeflate,
		Metadata: map[string]string{MetaRunID: "run-1"},
	})

	users, err := reg.Announce(announcement(t, "users", usersSchema))
	require.NoError(t, err)
	orders, err := reg.Announce(announcement(t, "orders", `{"properties":{"id":{"type":"integer"}}}`))
	require.NoError(t, err)

	require.NoError(t, users.Append(map[string]any{"id": json.Number("1"), "signup": int64(1577836800)}))
	require.NoError(t, users.Append(map[string]any{"id": json.Number("2")}))
	require.NoError(t, orders.Append(map[string]any{"id": json.Number("3")}))

	artifacts, err := reg.Finalize()
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	assert.Equal(t, "users", artifacts[0].Stream)
	assert.Equal(t, int64(2), artifacts[0].Records)
	assert.Equal(t, encoding.CodecDeflate, artifacts[0].Codec)
	assert.Equal(t, "users.avro", artifacts[0].DataName())
	assert.Equal(t, "users.avsc", artifacts[0].SchemaName())
	assert.Equal(t, "orders", artifacts[1].Stream)

	n, meta := countRecords(t, artifacts[0].DataPath)
	assert.Equal(t, 2, n)
	assert.Equal(t, "users", string(meta[MetaStream]))
	assert.Equal(t, "run-1", string(meta[MetaRunID]))

	n, meta = countRecords(t, artifacts[1].DataPath)
	assert.Equal(t, 1, n)
	assert.Equal(t, "orders", string(meta[MetaStream]))
}

func TestReannounceReopensFiles(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir, "", encoding.WriterOptions{})

	first, err := reg.Announce(announcement(t, "users", usersSchema))
	require.NoError(t, err)
	require.NoError(t, first.Append(map[string]any{"id": json.Number("1")}))

	other, err := reg.Announce(announcement(t, "orders", `{"properties":{"id":{"type":"integer"}}}`))
	require.NoError(t, err)
	require.NoError(t, other.Append(map[string]any{"id": json.Number("1")}))

	second, err := reg.Announce(announcement(t, "users", `{"properties":{"id":{"type":"integer"},"name":{"type":"string"}}}`))
	require.NoError(t, err)
	require.NoError(t, second.Append(map[string]any{"id": json.Number("2"), "name": "n"}))
	assert.Equal(t, int64(1), second.Records())

	artifacts, err := reg.Finalize()
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	// position of the first announcement is kept
	assert.Equal(t, "users", artifacts[0].Stream)
	assert.Equal(t, int64(1), artifacts[0].Records)

	n, _ := countRecords(t, artifacts[0].DataPath)
	assert.Equal(t, 1, n)

	sidecar, err := os.ReadFile(artifacts[0].SchemaPath)
	require.NoError(t, err)
	assert.Contains(t, string(sidecar), `"name": "name"`)
}

func TestFilteredStream(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir, "", encoding.WriterOptions{})

	a := announcement(t, "audit_log", usersSchema)
	a.Filtered = true
	state, err := reg.Announce(a)
	require.NoError(t, err)

	require.NoError(t, state.Append(map[string]any{"id": json.Number("1")}))
	assert.Equal(t, int64(1), state.Skipped())
	assert.Equal(t, int64(0), state.Records())
	assert.NoFileExists(t, state.DataPath)
	assert.NoFileExists(t, state.SidecarPath)

	artifacts, err := reg.Finalize()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestAnnounceDuplicateFieldNames(t *testing.T) {
	reg := NewRegistry(t.TempDir(), "", encoding.WriterOptions{})

	_, err := reg.Announce(announcement(t, "s", `{"properties":{"a-b":{"type":"string"},"a_b":{"type":"string"}}}`))
	assert.ErrorIs(t, err, encoding.ErrDuplicateField)
	assert.Equal(t, 0, reg.Len())
}

func TestAnnounceMissingDirectory(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "missing"), "", encoding.WriterOptions{})

	_, err := reg.Announce(announcement(t, "users", usersSchema))
	assert.Error(t, err)
}

func TestCloseReleasesWriters(t *testing.T) {
	reg := NewRegistry(t.TempDir(), "", encoding.WriterOptions{})
	state, err := reg.Announce(announcement(t, "users", usersSchema))
	require.NoError(t, err)

	reg.Close()
	assert.Error(t, state.Append(map[string]any{"id": json.Number("1")}))
}

func TestFileBase(t *testing.T) {
	assert.Equal(t, "users", FileBase("users"))
	assert.Equal(t, "public_users", FileBase("public/users"))
	assert.Equal(t, "a_b", FileBase(`a\b`))
	assert.Equal(t, "public-users", FileBase("public-users"))
}
