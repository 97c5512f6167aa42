package filerotate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

func TestIsSameHour(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	assert.True(t, IsSameHour(t1, t1.Add(30*time.Minute)))
	assert.False(t, IsSameHour(t1, t1.Add(time.Hour)))
	// same day of year, different year
	assert.False(t, IsSameHour(t1, t1.AddDate(1, 0, 0)))
	assert.False(t, IsSameDay(t1, t1.AddDate(0, 0, 1)))
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	var closed []string
	config := Config{
		DidClose: func(path string, didRotate bool) {
			if didRotate {
				closed = append(closed, filepath.Base(path))
			}
		},
		PathIfShouldRotate: MakeHourlyRotateInDir(dir, "httplog-"),
		now:                func() time.Time { return now },
	}
	f, err := New(&config)
	assert.NoError(t, err)
	assert.Equal(t, "httplog-2024-03-01_10.txt", filepath.Base(f.Path))

	_, err = f.Write([]byte("a\n"))
	assert.NoError(t, err)
	now = now.Add(20 * time.Minute)
	_, err = f.Write([]byte("b\n"))
	assert.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = f.Write([]byte("c\n"))
	assert.NoError(t, err)
	assert.Equal(t, "httplog-2024-03-01_11.txt", filepath.Base(f.Path))
	assert.Equal(t, []string{"httplog-2024-03-01_10.txt"}, closed)
	assert.NoError(t, f.Close())

	d, err := os.ReadFile(filepath.Join(dir, "httplog-2024-03-01_10.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(d))
	d, err = os.ReadFile(filepath.Join(dir, "httplog-2024-03-01_11.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "c\n", string(d))
}

func TestNewNeedsConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
	_, err = New(&Config{})
	assert.Error(t, err)
}
