package selection

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "selected.json")
	s := NewStore(path)

	cur, err := s.Current()
	require.NoError(t, err)
	assert.Nil(t, cur.Selection)
	raw, _ := json.Marshal(cur)
	assert.JSONEq(t, `{"selection":null}`, string(raw))

	require.NoError(t, s.Select("  鼎泰豐 信義店 "))
	require.NoError(t, s.Select("欣葉"))

	cur, err = s.Current()
	require.NoError(t, err)
	require.NotNil(t, cur.Selection)
	assert.Equal(t, "欣葉", *cur.Selection)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"selection":"欣葉"}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left next to the selection")
}

func TestStore_Errors(t *testing.T) {
	dir := t.TempDir()

	assert.ErrorIs(t, NewStore(filepath.Join(dir, "s.json")).Select("  "), ErrNameRequired)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err := NewStore(bad).Current()
	assert.ErrorContains(t, err, "decode selection")

	err = NewStore(filepath.Join(dir, "missing", "s.json")).Select("x")
	assert.Error(t, err)
}
