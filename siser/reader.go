package siser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Reader reads records written by Writer
type Reader struct {
	r *bufio.Reader

	// the data was written without a timestamp (see Writer.NoTimestamp)
	NoTimestamp bool

	// Data, Name and Timestamp are valid after ReadNextData
	// until the next read
	Data      []byte
	Name      string
	Timestamp time.Time

	// Record is valid after ReadNextRecord until the next read
	Record *Record

	err  error
	done bool
}

func NewReader(r *bufio.Reader) *Reader {
	return &Reader{
		r:      r,
		Record: &Record{},
	}
}

// Done returns true if we're finished reading
func (r *Reader) Done() bool {
	return r.err != nil || r.done
}

// Err returns the error that stopped reading. io.EOF is not an error.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) parseHeader(hdr []byte) (int, error) {
	rest := bytes.TrimPrefix(hdr[:len(hdr)-1], hdrPrefix)
	parts := bytes.SplitN(rest, []byte{' '}, 3)
	size, err := strconv.Atoi(string(parts[0]))
	if err != nil || size < 0 {
		return 0, fmt.Errorf("unexpected header '%s'", string(hdr))
	}
	r.Name = ""
	r.Timestamp = time.Time{}
	parts = parts[1:]
	if !r.NoTimestamp && len(parts) > 0 {
		ms, err := strconv.ParseInt(string(parts[0]), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unexpected header '%s'", string(hdr))
		}
		r.Timestamp = time.UnixMilli(ms)
		parts = parts[1:]
	}
	if len(parts) > 0 {
		r.Name = string(bytes.Join(parts, []byte{' '}))
	}
	return size, nil
}

// ReadNextData reads the next block. Returns false when there are no
// more blocks or on error (check Err()).
func (r *Reader) ReadNextData() bool {
	if r.Done() {
		return false
	}
	hdr, err := r.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(hdr) == 0 {
			r.done = true
		} else {
			r.err = fmt.Errorf("truncated header '%s'", string(hdr))
		}
		return false
	}
	size, err := r.parseHeader(hdr)
	if err != nil {
		r.err = err
		return false
	}
	r.Data = make([]byte, size)
	if _, err = io.ReadFull(r.r, r.Data); err != nil {
		r.err = err
		return false
	}
	// the writer pads data that doesn't end with a newline
	if size > 0 && r.Data[size-1] != '\n' {
		if _, err = r.r.Discard(1); err != nil {
			r.err = err
			return false
		}
	}
	return true
}

// ReadNextRecord reads the next key/value record into r.Record
func (r *Reader) ReadNextRecord() bool {
	if !r.ReadNextData() {
		return false
	}
	if err := r.Record.Unmarshal(r.Data); err != nil {
		r.err = err
		return false
	}
	r.Record.Name = r.Name
	r.Record.Timestamp = r.Timestamp
	return true
}
