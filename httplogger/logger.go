package httplogger

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kjk/studentdb/filerotate"
	"github.com/kjk/studentdb/siser"
)

// Entry describes one served request
type Entry struct {
	Method     string
	URI        string
	Host       string
	RemoteAddr string
	Code       int
	// bytes written, including headers
	Size     int64
	Duration time.Duration
	// lower-cased names
	Headers map[string]string
}

// Logger writes one siser record per request to an hourly rotated file
type Logger struct {
	rec   siser.Record // re-usable for performance
	siser *siser.Writer
	file  *filerotate.File
	mu    sync.Mutex
}

func New(dir string, didRotateFn func(path string)) (*Logger, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	didClose := func(path string, didRotate bool) {
		if didRotate && didRotateFn != nil {
			didRotateFn(path)
		}
	}
	res := &Logger{}
	res.file, err = filerotate.NewHourly(absDir, "httplog-", didClose)
	if err != nil {
		return nil, err
	}
	res.siser = siser.NewWriter(res.file)
	return res, nil
}

// Close is safe to call on nil receiver
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.siser = nil
	return err
}

// headers not worth logging
var hdrsToNotLog = map[string]bool{
	"host":                      true,
	"connection":                true,
	"content-length":            true,
	"dnt":                       true,
	"upgrade-insecure-requests": true,
	"sec-fetch-dest":            true,
	"sec-fetch-mode":            true,
	"sec-fetch-site":            true,
	"sec-fetch-user":            true,
	"sec-ch-ua-mobile":          true,
	"sec-ch-ua-platform":        true,
	"accept-language":           true,
	"if-modified-since":         true,
}

func shouldLogHeader(s string) bool {
	return !hdrsToNotLog[strings.ToLower(s)]
}

// ipFromRemoteAddr removes port: "[::1]:58292" => "[::1]"
func ipFromRemoteAddr(s string) string {
	idx := strings.LastIndex(s, ":")
	if idx == -1 {
		return s
	}
	return s[:idx]
}

// marshalEntry fills rec from e. Headers are written in sorted
// order so that the output is deterministic.
func marshalEntry(rec *siser.Record, e *Entry) {
	rec.Reset()
	rec.Name = "httplog"
	_ = rec.Write("req", fmt.Sprintf("%s %s %d", e.Method, e.URI, e.Code))
	_ = rec.WriteNonEmpty("host", e.Host, "ipaddr", ipFromRemoteAddr(e.RemoteAddr))
	_ = rec.Write("size", strconv.FormatInt(e.Size, 10))
	durMicro := int64(e.Duration / time.Microsecond)
	_ = rec.Write("durmicro", strconv.FormatInt(durMicro, 10))

	var keys []string
	for k := range e.Headers {
		if shouldLogHeader(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		_ = rec.WriteNonEmpty(k, e.Headers[k])
	}
}

// LogReq is safe to call on nil receiver
func (l *Logger) LogReq(e *Entry) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.siser == nil {
		return nil
	}
	marshalEntry(&l.rec, e)
	_, err := l.siser.WriteRecord(&l.rec)
	return err
}
