package siser

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

/*
Serialize/Deserialize a list of key/value pairs in a format that is easy
to parse and human-readable.

The basic format is line-oriented: "key: value\n"

When value is empty, long (> 120 chars) or has non-printable characters
we serialize it as:
key:+$len\n
value\n
*/

type Entry struct {
	Key   string
	Value string
}

// Record is a named list of key/value pairs
type Record struct {
	Name string
	// when writing, if zero we use current time
	Timestamp time.Time
	Entries   []Entry
}

// Write appends key/value pairs to the record
func (r *Record) Write(args ...string) error {
	n := len(args)
	if n == 0 || n%2 != 0 {
		return fmt.Errorf("invalid number of args: %d. Should be multiple of 2", n)
	}
	for i := 0; i < n; i += 2 {
		r.Entries = append(r.Entries, Entry{Key: args[i], Value: args[i+1]})
	}
	return nil
}

// WriteNonEmpty is like Write but skips pairs with empty values
func (r *Record) WriteNonEmpty(args ...string) error {
	n := len(args)
	if n == 0 || n%2 != 0 {
		return fmt.Errorf("invalid number of args: %d. Should be multiple of 2", n)
	}
	for i := 0; i < n; i += 2 {
		if args[i] == "" {
			return fmt.Errorf("empty key")
		}
		if args[i+1] == "" {
			continue
		}
		r.Entries = append(r.Entries, Entry{Key: args[i], Value: args[i+1]})
	}
	return nil
}

// Get returns a value for a given key
func (r *Record) Get(key string) (string, bool) {
	for _, e := range r.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Reset clears entries and timestamp but keeps the name
func (r *Record) Reset() {
	r.Timestamp = time.Time{}
	r.Entries = r.Entries[:0]
}

func serializableOnLine(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b < 32 || b > 127 {
			return false
		}
	}
	return true
}

func needsLongFormat(s string) bool {
	return len(s) == 0 || len(s) > 120 || !serializableOnLine(s)
}

// Marshal serializes entries (without the record header)
func (r *Record) Marshal() []byte {
	var buf bytes.Buffer
	for _, e := range r.Entries {
		buf.WriteString(e.Key)
		if !needsLongFormat(e.Value) {
			buf.WriteString(": ")
			buf.WriteString(e.Value)
			buf.WriteByte('\n')
			continue
		}
		buf.WriteString(":+")
		buf.WriteString(strconv.Itoa(len(e.Value)))
		buf.WriteByte('\n')
		buf.WriteString(e.Value)
		// keep the next key on its own line
		if len(e.Value) > 0 && e.Value[len(e.Value)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// Unmarshal decodes entries as created by Marshal, replacing r.Entries
func (r *Record) Unmarshal(d []byte) error {
	r.Entries = r.Entries[:0]
	for len(d) > 0 {
		idx := bytes.IndexByte(d, '\n')
		if idx == -1 {
			return fmt.Errorf("missing '\\n' at the end of '%s'", string(d))
		}
		line := d[:idx]
		d = d[idx+1:]
		idx = bytes.IndexByte(line, ':')
		if idx == -1 || idx == len(line)-1 {
			return fmt.Errorf("line in unrecognized format: '%s'", line)
		}
		key := string(line[:idx])
		kind := line[idx+1]
		val := line[idx+2:]
		switch kind {
		case ' ':
			r.Entries = append(r.Entries, Entry{Key: key, Value: string(val)})
			continue
		case '+':
			// size-prefixed value follows
		default:
			return fmt.Errorf("line in unrecognized format: '%s'", line)
		}
		n, err := strconv.Atoi(string(val))
		if err != nil {
			return err
		}
		if n < 0 || n > len(d) {
			return fmt.Errorf("invalid length %d of value, %d bytes left", n, len(d))
		}
		r.Entries = append(r.Entries, Entry{Key: key, Value: string(d[:n])})
		d = d[n:]
		if n > 0 && len(d) > 0 && d[0] == '\n' {
			d = d[1:]
		}
	}
	return nil
}
