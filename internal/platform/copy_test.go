package platform

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPair(t *testing.T, data []byte) (*os.File, *os.File, string) {
	t.Helper()
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	dstPath := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(srcPath, data, 0o644))

	src, err := os.Open(srcPath)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	dst, err := os.OpenFile(dstPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { dst.Close() })

	return dst, src, dstPath
}

func TestCopyFileBasic(t *testing.T) {
	t.Parallel()
	data := []byte("hello, salvage!")
	dst, src, dstPath := openPair(t, data)

	result, err := CopyFile(dst, src)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), result.BytesWritten)

	require.NoError(t, dst.Close())
	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCopyFileLarge(t *testing.T) {
	t.Parallel()
	// 4 MiB, larger than the 1 MiB buffer.
	data := make([]byte, 4*1024*1024)
	_, err := rand.Read(data)
	require.NoError(t, err)
	dst, src, dstPath := openPair(t, data)

	result, err := CopyFile(dst, src)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), result.BytesWritten)

	require.NoError(t, dst.Close())
	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCopyFileEmpty(t *testing.T) {
	t.Parallel()
	dst, src, dstPath := openPair(t, nil)

	result, err := CopyFile(dst, src)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.BytesWritten)

	info, err := os.Stat(dstPath)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestCopyReadWrite(t *testing.T) {
	t.Parallel()
	data := make([]byte, bufferSize+123)
	_, err := rand.Read(data)
	require.NoError(t, err)
	dst, src, dstPath := openPair(t, data)

	result, err := copyReadWrite(dst, src, int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, ReadWrite, result.Method)
	assert.Equal(t, int64(len(data)), result.BytesWritten)

	require.NoError(t, dst.Close())
	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCopyReadWriteShortSource(t *testing.T) {
	t.Parallel()
	data := []byte("0123456789")
	dst, src, _ := openPair(t, data)

	result, err := copyReadWrite(dst, src, int64(len(data))+10)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, int64(len(data)), result.BytesWritten)
}

func TestCopyMethodString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "read_write", ReadWrite.String())
	assert.Equal(t, "copy_file_range", CopyFileRange.String())
	assert.Equal(t, "sendfile", Sendfile.String())
	assert.Equal(t, "unknown", CopyMethod(99).String())
}
