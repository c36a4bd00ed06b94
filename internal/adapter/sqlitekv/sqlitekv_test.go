package sqlitekv_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthsync/internal/adapter/sqlitekv"
	"healthsync/internal/domain"
)

func openStore(t *testing.T, maxBlobBytes int, compress bool) *sqlitekv.Store {
	t.Helper()
	s, err := sqlitekv.Open(filepath.Join(t.TempDir(), "kv.db"), maxBlobBytes, compress)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRoundTrip(t *testing.T) {
	s := openStore(t, 0, false)

	require.NoError(t, s.Save("entries/weight", []byte(`[{"value":80}]`)))
	got, err := s.Load("entries/weight")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"value":80}]`), got)

	// Overwrite replaces, not appends.
	require.NoError(t, s.Save("entries/weight", []byte("v2")))
	got, err = s.Load("entries/weight")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestLoadAbsentKey(t *testing.T) {
	s := openStore(t, 0, false)

	got, err := s.Load("no/such/key")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRemove(t *testing.T) {
	s := openStore(t, 0, false)

	require.NoError(t, s.Save("k", []byte("v")))
	require.NoError(t, s.Remove("k"))
	got, err := s.Load("k")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Absent key is not an error.
	require.NoError(t, s.Remove("k"))
}

func TestCompressedRoundTrip(t *testing.T) {
	s := openStore(t, 0, true)

	blob := []byte(strings.Repeat(`{"kind":"hydration","value":250},`, 200))
	require.NoError(t, s.Save("entries/hydration", blob))
	got, err := s.Load("entries/hydration")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(blob, got))
}

func TestCompressionToggle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	blob := []byte(strings.Repeat("abc", 100))

	plain, err := sqlitekv.Open(path, 0, false)
	require.NoError(t, err)
	require.NoError(t, plain.Save("k", blob))
	require.NoError(t, plain.Close())

	// A store opened with compression enabled still reads plain rows,
	// and a plain store reads compressed rows.
	compressed, err := sqlitekv.Open(path, 0, true)
	require.NoError(t, err)
	got, err := compressed.Load("k")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
	require.NoError(t, compressed.Save("k2", blob))
	require.NoError(t, compressed.Close())

	plain, err = sqlitekv.Open(path, 0, false)
	require.NoError(t, err)
	defer plain.Close()
	got, err = plain.Load("k2")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
}

func TestSizeCeiling(t *testing.T) {
	s := openStore(t, 16, false)

	require.NoError(t, s.Save("k", bytes.Repeat([]byte("x"), 16)))
	err := s.Save("k", bytes.Repeat([]byte("x"), 17))
	assert.ErrorIs(t, err, domain.ErrSizeExceeded)

	// The ceiling applies after compression, so a compressible blob
	// larger than the cap can still fit.
	c := openStore(t, 64, true)
	require.NoError(t, c.Save("k", bytes.Repeat([]byte("x"), 4096)))
}
