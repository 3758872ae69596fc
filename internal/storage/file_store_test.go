package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

// минимальный PNG: сигнатура и заголовок IHDR
var pngHeader = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func pngFile(size int) []byte {
	data := make([]byte, size)
	copy(data, pngHeader)
	for i := len(pngHeader); i < size; i++ {
		data[i] = byte(i)
	}
	return data
}

func TestFileStore_SaveAndOpen(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), 1)
	require.NoError(t, err)
	data := pngFile(4096)

	f, err := s.Save(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	sum := blake2b.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), f.Digest)
	assert.Equal(t, "image/png", f.MIME)
	assert.Equal(t, int64(len(data)), f.Size)
	assert.True(t, IsRef(f.Ref))
	assert.LessOrEqual(t, len(f.Ref), 200)

	r, err := s.Open(context.Background(), f.Ref)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	again, err := s.Save(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, f.Ref, again.Ref)
}

func TestFileStore_RejectsUnknownType(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), 1)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), bytes.NewReader([]byte("просто текст")))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestFileStore_RejectsOversize(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), 1)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), bytes.NewReader(pngFile(1024*1024+1)))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFileStore_OpenRejectsForeignPaths(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), 1)
	require.NoError(t, err)

	for _, ref := range []string{"../etc/passwd", "files/abc.png", ""} {
		_, err := s.Open(context.Background(), ref)
		assert.ErrorIs(t, err, ErrFileNotFound, ref)
	}
}
