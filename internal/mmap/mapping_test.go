package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob.mcb")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestMapping_ReadAt(t *testing.T) {
	m, err := Open(writeFile(t, []byte("MCB1 codebook")))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 13, m.Size())
	assert.Equal(t, []byte("MCB1 codebook"), m.Bytes())

	buf := make([]byte, 4)
	n, err := m.ReadAt(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "code", string(buf))

	tail := make([]byte, 16)
	n, err = m.ReadAt(tail, 5)
	assert.Equal(t, 8, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "codebook", string(tail[:n]))

	n, err = m.ReadAt(buf, 100)
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.ErrorIs(t, err, ErrInvalidOffset)
}

func TestMapping_Section(t *testing.T) {
	m, err := Open(writeFile(t, make([]byte, 1024)))
	require.NoError(t, err)
	defer m.Close()

	s, err := m.Section(100, 200)
	require.NoError(t, err)
	assert.Len(t, s, 200)
	assert.Equal(t, 200, cap(s))

	s, err = m.Section(1024, 0)
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = m.Section(-1, 4)
	assert.ErrorIs(t, err, ErrInvalidOffset)
	_, err = m.Section(1000, 25)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = m.Section(0, -1)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	require.NoError(t, m.Advise(AccessRandom))
	require.NoError(t, m.Advise(AccessSequential))
}

func TestMapping_Empty(t *testing.T) {
	m, err := Open(writeFile(t, nil))
	require.NoError(t, err)

	assert.Zero(t, m.Size())
	assert.Empty(t, m.Bytes())
	require.NoError(t, m.Advise(AccessWillNeed))
	require.NoError(t, m.Close())
}

func TestMapping_AfterClose(t *testing.T) {
	m, err := Open(writeFile(t, []byte("data")))
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.Advise(AccessRandom), ErrClosed)
	_, err = m.Section(0, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mcb"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
