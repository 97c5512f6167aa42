package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kjk/studentdb/atomicfile"
	"github.com/kjk/studentdb/log"
	"github.com/kjk/studentdb/siser"
	"github.com/kjk/studentdb/u"
)

const recordName = "student"

// Record is a single student
type Record struct {
	Number int    `json:"number"`
	First  string `json:"first"`
	Last   string `json:"last"`
}

type Store struct {
	// Path of the file with records, e.g. "db.txt" or "db.txt.zst"
	Path string
	// if set, called after every successful save with absolute path of the file
	OnSaved func(path string)

	path string
	mu   sync.Mutex
}

// ErrCorrupt is returned when the file exists but can't be decoded
var ErrCorrupt = errors.New("store file is corrupt")

func Open(s *Store) error {
	if s.Path == "" {
		return fmt.Errorf("store path is not set")
	}
	var err error
	s.path, err = filepath.Abs(s.Path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for '%s': %w", s.Path, err)
	}
	return os.MkdirAll(filepath.Dir(s.path), 0755)
}

// AbsPath returns absolute path of the store file
func (s *Store) AbsPath() string {
	return s.path
}

func (s *Store) isCompressed() bool {
	return strings.HasSuffix(s.path, ".zst")
}

func encodeRecords(records []*Record) []byte {
	var buf bytes.Buffer
	w := siser.NewWriter(&buf)
	w.NoTimestamp = true
	rec := &siser.Record{Name: recordName}
	for _, r := range records {
		rec.Reset()
		_ = rec.Write("number", strconv.Itoa(r.Number), "first", r.First, "last", r.Last)
		// writing to bytes.Buffer can't fail
		_, _ = w.WriteRecord(rec)
	}
	return buf.Bytes()
}

func decodeRecord(rec *siser.Record) (*Record, error) {
	if rec.Name != recordName {
		return nil, fmt.Errorf("%w: unexpected record '%s'", ErrCorrupt, rec.Name)
	}
	num, ok1 := rec.Get("number")
	first, ok2 := rec.Get("first")
	last, ok3 := rec.Get("last")
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%w: missing fields in record %v", ErrCorrupt, rec.Entries)
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return nil, fmt.Errorf("%w: bad number '%s'", ErrCorrupt, num)
	}
	return &Record{Number: n, First: first, Last: last}, nil
}

func decodeRecords(d []byte) ([]*Record, error) {
	r := siser.NewReader(bufio.NewReader(bytes.NewReader(d)))
	r.NoTimestamp = true
	var res []*Record
	for r.ReadNextRecord() {
		rec, err := decodeRecord(r.Record)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	return res, nil
}

// load reads all records. A missing file is an empty store.
func (s *Store) load() ([]*Record, error) {
	d, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if s.isCompressed() && len(d) > 0 {
		d, err = u.ZstdDecompressData(d)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
		}
	}
	return decodeRecords(d)
}

// loadOrEmpty treats unreadable data as no data
func (s *Store) loadOrEmpty() []*Record {
	records, err := s.load()
	if err != nil {
		log.Errorf("store: reading '%s' failed with '%s'\n", s.path, err)
		return nil
	}
	return records
}

func (s *Store) save(records []*Record) error {
	d := encodeRecords(records)
	if s.isCompressed() {
		var err error
		d, err = u.ZstdCompressData(d)
		if err != nil {
			return err
		}
	}
	if err := atomicfile.WriteFile(s.path, d); err != nil {
		return err
	}
	if s.OnSaved != nil {
		s.OnSaved(s.path)
	}
	return nil
}

// preserveCorrupt moves an undecodable file aside so that the rewrite
// that follows doesn't destroy it
func (s *Store) preserveCorrupt() {
	dst := s.path + ".corrupt"
	err := os.Rename(s.path, dst)
	if !log.IfErrf(err, "store: failed to move corrupt '%s' aside: %s\n", s.path, err) {
		log.Logf("store: moved corrupt '%s' to '%s'\n", s.path, dst)
	}
}

func nextNumber(records []*Record) int {
	n := 0
	for _, r := range records {
		n = max(n, r.Number)
	}
	return n + 1
}

// Append adds a new record with the next sequential number and
// rewrites the file
func (s *Store) Append(first, last string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return nil, err
		}
		log.Errorf("store: %s\n", err)
		s.preserveCorrupt()
		records = nil
	}
	rec := &Record{
		Number: nextNumber(records),
		First:  first,
		Last:   last,
	}
	records = append(records, rec)
	if err = s.save(records); err != nil {
		return nil, fmt.Errorf("store: saving '%s' failed: %w", s.path, err)
	}
	return rec, nil
}

// Records returns all records, oldest first
func (s *Store) Records() []*Record {
	return s.Query(nil)
}

// Query returns records matching f, in the order they were appended.
// nil filter matches all records. Missing or corrupt file is an empty store.
func (s *Store) Query(f *Filter) []*Record {
	s.mu.Lock()
	records := s.loadOrEmpty()
	s.mu.Unlock()

	if f == nil {
		return records
	}
	var res []*Record
	for _, r := range records {
		if f.Match(r) {
			res = append(res, r)
		}
	}
	return res
}

// QueryCriteria normalizes c and returns matching records
func (s *Store) QueryCriteria(c Criteria) ([]*Record, error) {
	f, err := NewFilter(c)
	if err != nil {
		return nil, err
	}
	return s.Query(f), nil
}
