package server

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/assert"
)

func readRequestString(s string) (*Request, error) {
	return ReadRequest(bufio.NewReader(strings.NewReader(s)))
}

func TestReadRequest(t *testing.T) {
	raw := "GET /app-json?last=Lee HTTP/1.1\r\nHost: localhost:8080\r\nX-Empty:\r\nUser-Agent :  curl/8.0 \r\nX-Colon: a:b\r\n\r\n"
	req, err := readRequestString(raw)
	assert.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/app-json?last=Lee", req.Target)
	assert.Equal(t, "HTTP/1.1", req.Version)
	exp := map[string]string{
		"host":       "localhost:8080",
		"x-empty":    "",
		"user-agent": "curl/8.0",
		"x-colon":    "a:b",
	}
	assert.Equal(t, exp, req.Headers)

	// bare \n line endings are accepted
	req, err = readRequestString("GET / HTTP/1.1\nhost: x\n\n")
	assert.NoError(t, err)
	assert.Equal(t, "x", req.Headers["host"])
}

func TestReadRequestMalformed(t *testing.T) {
	tests := []struct {
		raw string
		err error
	}{
		{"", ErrMalformedRequestLine},
		{"\r\n", ErrMalformedRequestLine},
		{"GET /\r\n\r\n", ErrMalformedRequestLine},
		{"GET  / HTTP/1.1\r\n\r\n", ErrMalformedRequestLine},
		{"GET / HTTP/1.1 extra\r\n\r\n", ErrMalformedRequestLine},
		{"GET / HTTP/1.1\r\nno colon here\r\n\r\n", ErrMalformedHeader},
		// connection closed before the empty line
		{"GET / HTTP/1.1\r\nhost: x\r\n", ErrMalformedHeader},
		{"GET / HTTP/1.1\r\nx-big: " + strings.Repeat("a", MaxHeaderBytes) + "\r\n\r\n", ErrMalformedHeader},
	}
	for _, tt := range tests {
		_, err := readRequestString(tt.raw)
		assert.True(t, errors.Is(err, tt.err), "raw: %q, err: %v", tt.raw, err)
	}
}

func TestReadRequestHeaderLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("GET / HTTP/1.1\r\n")
	// many small headers add up
	for sb.Len() < MaxHeaderBytes {
		sb.WriteString("x-filler: 0123456789012345678901234567890123456789\r\n")
	}
	sb.WriteString("\r\n")
	_, err := readRequestString(sb.String())
	assert.True(t, errors.Is(err, ErrHeaderTooLarge), "%v", err)
}

func validateString(t *testing.T, raw string) error {
	req, err := readRequestString(raw)
	assert.NoError(t, err)
	return req.Validate(100)
}

func statusCode(err error) int {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.Code
	}
	return 0
}

func TestValidate(t *testing.T) {
	tests := []struct {
		raw  string
		code int
		err  error
	}{
		{"DELETE / HTTP/1.1\r\nhost: x\r\n\r\n", 405, ErrBadMethod},
		{"get / HTTP/1.1\r\nhost: x\r\n\r\n", 405, ErrBadMethod},
		// method is checked before everything else
		{"PUT index.html HTTP/1.0\r\n\r\n", 405, ErrBadMethod},
		{"GET index.html HTTP/1.1\r\nhost: x\r\n\r\n", 400, ErrBadTarget},
		{"GET index.html HTTP/1.0\r\n\r\n", 400, ErrBadTarget},
		{"GET / HTTP/1.0\r\nhost: x\r\n\r\n", 400, ErrBadVersion},
		{"GET / HTTP/2\r\n\r\n", 400, ErrBadVersion},
		{"GET / HTTP/1.1\r\n\r\n", 400, ErrMissingHost},
		{"POST /app-add HTTP/1.1\r\nhost: x\r\n\r\n", 400, ErrMissingContentLength},
		{"POST /app-add HTTP/1.1\r\ncontent-length: 5\r\n\r\n", 400, ErrMissingHost},
		{"POST /app-add HTTP/1.1\r\nhost: x\r\ncontent-length: abc\r\n\r\n", 400, ErrBadContentLength},
		{"POST /app-add HTTP/1.1\r\nhost: x\r\ncontent-length: -1\r\n\r\n", 400, ErrBadContentLength},
		{"POST /app-add HTTP/1.1\r\nhost: x\r\ncontent-length: 101\r\n\r\n", 400, ErrBadContentLength},
	}
	for _, tt := range tests {
		err := validateString(t, tt.raw)
		assert.Equal(t, tt.code, statusCode(err), "%q", tt.raw)
		assert.True(t, errors.Is(err, tt.err), "raw: %q, err: %v", tt.raw, err)
	}
}

func TestValidateSplitsTarget(t *testing.T) {
	req, err := readRequestString("POST /app-add?x=1?y=2 HTTP/1.1\r\nHost: x\r\nContent-Length: 100\r\n\r\n")
	assert.NoError(t, err)
	assert.NoError(t, req.Validate(100))
	assert.Equal(t, "/app-add", req.Path)
	assert.Equal(t, "x=1?y=2", req.RawQuery)
	assert.Equal(t, int64(100), req.ContentLength)

	req, err = readRequestString("GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.NoError(t, err)
	assert.NoError(t, req.Validate(100))
	assert.Equal(t, "/index.html", req.Path)
	assert.Equal(t, "", req.RawQuery)
}

func TestReadBody(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("first=Mick&last=JaggerEXTRA"))
	req := &Request{ContentLength: 22}
	assert.NoError(t, req.ReadBody(br))
	assert.Equal(t, "first=Mick&last=Jagger", string(req.Body))

	br = bufio.NewReader(strings.NewReader("short"))
	req = &Request{ContentLength: 100}
	err := req.ReadBody(br)
	assert.Equal(t, 400, statusCode(err))
	assert.True(t, req.Body == nil)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path  string
		route Route
	}{
		{"/app-index", RouteList},
		{"/www-data/app-index", RouteList},
		{"/app-add", RouteAdd},
		{"/www-data/app-add", RouteAdd},
		{"/app-json", RouteJSON},
		{"/www-data/app-json", RouteJSON},
		{"/", RouteStatic},
		{"/app-json/", RouteStatic},
		{"/APP-JSON", RouteStatic},
		{"/app_list.html", RouteStatic},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.route, Classify(tt.path), tt.path)
	}
	assert.Equal(t, "POST", RouteAdd.Method())
	assert.Equal(t, "GET", RouteList.Method())
	assert.Equal(t, "GET", RouteJSON.Method())
	assert.Equal(t, "GET", RouteStatic.Method())
	assert.Equal(t, "app_list.html", RouteList.Template())
	assert.Equal(t, "app_add.html", RouteAdd.Template())
	assert.Equal(t, "json", RouteJSON.String())
}
