package filerotate

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Config struct {
	// called after a file is closed. didRotate is false when closed by Close()
	DidClose func(path string, didRotate bool)
	// returns path of a new file if we should rotate, "" otherwise
	PathIfShouldRotate func(creationTime time.Time, now time.Time) string
	// for tests
	now func() time.Time
}

// File is an append-only file that switches to a new path when
// PathIfShouldRotate says so
type File struct {
	sync.Mutex

	// Path is the path of the current file
	Path string

	creationTime time.Time
	config       Config
	file         *os.File
}

func IsSameDay(t1, t2 time.Time) bool {
	return t1.Year() == t2.Year() && t1.YearDay() == t2.YearDay()
}

func IsSameHour(t1, t2 time.Time) bool {
	return IsSameDay(t1, t2) && t1.Hour() == t2.Hour()
}

func New(config *Config) (*File, error) {
	if config == nil {
		return nil, fmt.Errorf("must provide config")
	}
	if config.PathIfShouldRotate == nil {
		return nil, fmt.Errorf("must provide config.PathIfShouldRotate")
	}
	f := &File{
		config: *config,
	}
	if f.config.now == nil {
		f.config.now = time.Now
	}
	if err := f.reopenIfNeeded(); err != nil {
		return nil, err
	}
	return f, nil
}

// MakeHourlyRotateInDir returns a rotation func creating
// <dir>/<prefix>YYYY-MM-DD_HH.txt files
func MakeHourlyRotateInDir(dir string, prefix string) func(time.Time, time.Time) string {
	return func(creationTime time.Time, now time.Time) string {
		if IsSameHour(creationTime, now) {
			return ""
		}
		name := prefix + now.Format("2006-01-02_15") + ".txt"
		return filepath.Join(dir, name)
	}
}

// NewHourly creates a new file, rotating hourly in a given directory
func NewHourly(dir string, prefix string, didClose func(path string, didRotate bool)) (*File, error) {
	config := Config{
		DidClose:           didClose,
		PathIfShouldRotate: MakeHourlyRotateInDir(dir, prefix),
	}
	return New(&config)
}

func (f *File) close(didRotate bool) error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	if err == nil && f.config.DidClose != nil {
		f.config.DidClose(f.Path, didRotate)
	}
	return err
}

func (f *File) open(path string, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	f.Path = path
	f.creationTime = now
	f.file = file
	return nil
}

func (f *File) reopenIfNeeded() error {
	now := f.config.now()
	newPath := f.config.PathIfShouldRotate(f.creationTime, now)
	if newPath == "" && f.file != nil {
		return nil
	}
	if newPath == "" {
		// closed by Close(), re-open the same file
		newPath = f.Path
	}
	if err := f.close(true); err != nil {
		return err
	}
	return f.open(newPath, now)
}

// Write writes data to the current file, rotating first if needed
func (f *File) Write(d []byte) (int, error) {
	f.Lock()
	defer f.Unlock()

	if err := f.reopenIfNeeded(); err != nil {
		return 0, err
	}
	return f.file.Write(d)
}

func (f *File) Close() error {
	f.Lock()
	defer f.Unlock()

	return f.close(false)
}
