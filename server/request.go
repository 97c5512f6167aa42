package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// MaxHeaderBytes limits size of request line and headers combined.
	// It's also the longest single line we accept.
	MaxHeaderBytes = 64 * 1024
	// DefaultMaxBodyBytes limits size of POST body
	DefaultMaxBodyBytes = 1024 * 1024
)

var (
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrMalformedHeader      = errors.New("malformed header")
	ErrHeaderTooLarge       = errors.New("request headers too large")
	ErrBadMethod            = errors.New("method not allowed")
	ErrBadTarget            = errors.New("target must start with '/'")
	ErrBadVersion           = errors.New("unsupported http version")
	ErrMissingHost          = errors.New("missing host header")
	ErrMissingContentLength = errors.New("missing content-length header")
	ErrBadContentLength     = errors.New("invalid content-length header")
	ErrMissingField         = errors.New("missing form field")
)

// StatusError is an error that maps to an http status code
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, statusText(e.Code), e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func badRequest(err error) *StatusError {
	return &StatusError{Code: 400, Err: err}
}

// Request is a parsed http request. It lives for the duration of a connection.
type Request struct {
	Method  string
	Target  string
	Version string
	// Target split on first '?'
	Path     string
	RawQuery string
	// names are lower-cased, values trimmed
	Headers map[string]string
	// decoded query string or form body, set by handlers that use it
	Params map[string]string
	Body   []byte
	// set by Validate() for POST
	ContentLength int64

	bodyRead bool
}

type lineReader struct {
	br *bufio.Reader
	// bytes left before ErrHeaderTooLarge
	left int
}

func (r *lineReader) readLine() (string, error) {
	line, err := r.br.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", ErrHeaderTooLarge
	}
	r.left -= len(line)
	if r.left < 0 {
		return "", ErrHeaderTooLarge
	}
	if err != nil {
		// a line must be terminated by '\n'
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

// ReadRequest reads request line and headers. It doesn't read the body.
func ReadRequest(br *bufio.Reader) (*Request, error) {
	lr := &lineReader{br: br, left: MaxHeaderBytes}
	line, err := lr.readLine()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequestLine, err)
	}
	parts := strings.Split(strings.TrimSpace(line), " ")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: '%s'", ErrMalformedRequestLine, line)
	}
	req := &Request{
		Method:  parts[0],
		Target:  parts[1],
		Version: parts[2],
		Headers: map[string]string{},
	}
	for {
		line, err = lr.readLine()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		name, val, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrMalformedHeader, line)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		req.Headers[name] = strings.TrimSpace(val)
	}
	return req, nil
}

// Validate checks the request in a fixed order and returns *StatusError for
// the first failed check. On success it sets Path, RawQuery and ContentLength.
func (r *Request) Validate(maxBodyBytes int64) error {
	if r.Method != "GET" && r.Method != "POST" {
		return &StatusError{Code: 405, Err: fmt.Errorf("%w: '%s'", ErrBadMethod, r.Method)}
	}
	if !strings.HasPrefix(r.Target, "/") {
		return badRequest(fmt.Errorf("%w: '%s'", ErrBadTarget, r.Target))
	}
	if r.Version != "HTTP/1.1" {
		return badRequest(fmt.Errorf("%w: '%s'", ErrBadVersion, r.Version))
	}
	if _, ok := r.Headers["host"]; !ok {
		return badRequest(ErrMissingHost)
	}
	if r.Method == "POST" {
		s, ok := r.Headers["content-length"]
		if !ok {
			return badRequest(ErrMissingContentLength)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 || n > maxBodyBytes {
			return badRequest(fmt.Errorf("%w: '%s'", ErrBadContentLength, s))
		}
		r.ContentLength = n
	}
	r.Path, r.RawQuery, _ = strings.Cut(r.Target, "?")
	return nil
}

// ReadBody reads exactly ContentLength bytes
func (r *Request) ReadBody(br *bufio.Reader) error {
	r.bodyRead = true
	r.Body = make([]byte, r.ContentLength)
	_, err := io.ReadFull(br, r.Body)
	if err != nil {
		r.Body = nil
		return badRequest(fmt.Errorf("reading body of %d bytes: %w", r.ContentLength, err))
	}
	return nil
}
