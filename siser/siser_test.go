package siser

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

func TestMarshalLine(t *testing.T) {
	fixedTime := time.Date(2024, 1, 15, 10, 30, 45, 123000000, time.UTC)
	fixedTimeMs := strconv.FormatInt(fixedTime.UnixMilli(), 10)
	data := []byte("test data")

	tests := []struct {
		name     string
		dataName string
		t        time.Time
		d        []byte
		expected string
	}{
		{"all fields present", "myrecord", fixedTime, data, "--- 9 " + fixedTimeMs + " myrecord\ntest data\n"},
		{"empty name", "", fixedTime, data, "--- 9 " + fixedTimeMs + "\ntest data\n"},
		{"zero time", "myrecord", time.Time{}, data, "--- 9 myrecord\ntest data\n"},
		{"nil data", "myrecord", fixedTime, nil, "--- 0 " + fixedTimeMs + " myrecord\n"},
		{"data ends with newline", "", time.Time{}, []byte("test data\n"), "--- 10\ntest data\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarshalLine(tt.dataName, tt.t, tt.d, nil)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestRecordMarshalUnmarshal(t *testing.T) {
	long := strings.Repeat("x", 200)
	r := &Record{}
	assert.NoError(t, r.Write("number", "1", "first", "Mick", "last", "Jagger"))
	assert.NoError(t, r.Write("empty", "", "multi", "line1\nline2", "long", long, "utf8", "Zoë"))
	d := r.Marshal()
	assert.True(t, bytes.HasPrefix(d, []byte("number: 1\nfirst: Mick\nlast: Jagger\nempty:+0\n")))

	var r2 Record
	assert.NoError(t, r2.Unmarshal(d))
	assert.Equal(t, r.Entries, r2.Entries)
	v, ok := r2.Get("utf8")
	assert.True(t, ok)
	assert.Equal(t, "Zoë", v)
	_, ok = r2.Get("missing")
	assert.False(t, ok)
}

func TestRecordWriteInvalid(t *testing.T) {
	r := &Record{}
	assert.Error(t, r.Write("odd"))
	assert.Error(t, r.WriteNonEmpty("", "v"))
	assert.NoError(t, r.WriteNonEmpty("a", "", "b", "2"))
	assert.Equal(t, []Entry{{Key: "b", Value: "2"}}, r.Entries)
}

func TestUnmarshalErrors(t *testing.T) {
	bad := []string{
		"no newline",
		"nocolon\n",
		"key:\n",
		"key:?x\n",
		"key:+abc\n",
		"key:+100\nshort\n",
	}
	for _, s := range bad {
		var r Record
		assert.Error(t, r.Unmarshal([]byte(s)), s)
	}
}

func TestWriterReader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.NoTimestamp = true
	for i := 1; i <= 3; i++ {
		r := &Record{Name: "student"}
		assert.NoError(t, r.Write("number", strconv.Itoa(i), "first", "f"+strconv.Itoa(i)))
		_, err := w.WriteRecord(r)
		assert.NoError(t, err)
	}

	rd := NewReader(bufio.NewReader(&buf))
	rd.NoTimestamp = true
	n := 0
	for rd.ReadNextRecord() {
		n++
		assert.Equal(t, "student", rd.Record.Name)
		v, _ := rd.Record.Get("number")
		assert.Equal(t, strconv.Itoa(n), v)
	}
	assert.NoError(t, rd.Err())
	assert.Equal(t, 3, n)
	assert.True(t, rd.Done())
}

func TestReaderWithTimestamp(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	ts := time.UnixMilli(1700000000123)
	_, err := w.Write([]byte("hello"), ts, "ev")
	assert.NoError(t, err)

	rd := NewReader(bufio.NewReader(&buf))
	assert.True(t, rd.ReadNextData())
	assert.Equal(t, "hello", string(rd.Data))
	assert.Equal(t, "ev", rd.Name)
	assert.True(t, ts.Equal(rd.Timestamp))
	assert.False(t, rd.ReadNextData())
	assert.NoError(t, rd.Err())
}

func TestReaderCorrupt(t *testing.T) {
	inputs := []string{
		"--- abc\n",
		"--- 100\nshort",
		"--- 5",
	}
	for _, s := range inputs {
		rd := NewReader(bufio.NewReader(strings.NewReader(s)))
		rd.NoTimestamp = true
		assert.False(t, rd.ReadNextData())
		assert.Error(t, rd.Err(), s)
	}
}
