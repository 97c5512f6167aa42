package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert"
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestWriteFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "db.txt")
	assert.NoError(t, WriteFile(dst, []byte("first")))
	d, err := os.ReadFile(dst)
	assert.NoError(t, err)
	assert.Equal(t, "first", string(d))

	// overwrites
	assert.NoError(t, WriteFile(dst, []byte("second version")))
	d, err = os.ReadFile(dst)
	assert.NoError(t, err)
	assert.Equal(t, "second version", string(d))

	entries, err := os.ReadDir(filepath.Dir(dst))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(entries))
}

func TestSimulateError(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "db.txt")
	f, err := New(dst)
	assert.NoError(t, err)
	assert.True(t, fileExists(f.tmpPath))
	_, err = f.Write([]byte("foo"))
	assert.NoError(t, err)

	errSimulated := errors.New("simulated")
	f.err = errSimulated
	assert.Equal(t, errSimulated, f.Close())
	assert.False(t, fileExists(f.tmpPath))
	assert.False(t, fileExists(dst))
	// second Close() returns the same error
	assert.Equal(t, errSimulated, f.Close())
}

func TestRemoveIfNotClosed(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "db.txt")
	assert.NoError(t, os.WriteFile(dst, []byte("old"), 0644))

	f, err := New(dst)
	assert.NoError(t, err)
	_, err = f.Write([]byte("new"))
	assert.NoError(t, err)
	f.RemoveIfNotClosed()
	assert.False(t, fileExists(f.tmpPath))

	_, err = f.Write([]byte("more"))
	assert.Equal(t, ErrCancelled, err)
	assert.Equal(t, ErrCancelled, f.Close())

	d, err := os.ReadFile(dst)
	assert.NoError(t, err)
	assert.Equal(t, "old", string(d))

	// a no-op after Close()
	f.RemoveIfNotClosed()
	var nilFile *File
	nilFile.RemoveIfNotClosed()
}

func TestMissingDir(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "foo", "bar.txt")
	f, err := New(dst)
	assert.Error(t, err)
	assert.True(t, f == nil)
	assert.Error(t, WriteFile(dst, []byte("x")))

	_, err = New(t.TempDir() + string(os.PathSeparator))
	assert.Error(t, err)
}
