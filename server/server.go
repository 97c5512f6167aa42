package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"time"

	"github.com/kjk/studentdb/httplogger"
	"github.com/kjk/studentdb/log"
	"github.com/kjk/studentdb/store"
)

// DefaultTimeout bounds the time to read a request and write a response
const DefaultTimeout = 30 * time.Second

// Server serves one connection at a time: static files from Root and
// dynamic pages backed by Store
type Server struct {
	// web root with static files and app_list.html / app_add.html templates
	Root  fs.FS
	Store *store.Store

	// deadline for the whole connection, DefaultTimeout if 0
	Timeout time.Duration
	// limit for POST body size, DefaultMaxBodyBytes if 0
	MaxBodyBytes int64
	// if true, compress text files with br or zstd if the client accepts it
	ServeCompressed bool
	// base names of files never served from Root, e.g. the store file
	HiddenFiles []string
	// optional
	RequestLog *httplogger.Logger
}

func (s *Server) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

func (s *Server) maxBodyBytes() int64 {
	if s.MaxBodyBytes > 0 {
		return s.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}

// handle reads a request and writes exactly one response.
// Every branch returns right after writing the response.
func (s *Server) handle(w *responseWriter, br *bufio.Reader) *Request {
	req, err := ReadRequest(br)
	if err != nil {
		s.writeStatusError(w, badRequest(err))
		return nil
	}
	if err = req.Validate(s.maxBodyBytes()); err != nil {
		s.writeStatusError(w, err)
		return req
	}
	route := Classify(req.Path)
	if req.Method != route.Method() {
		err = fmt.Errorf("%w: %s %s", ErrBadMethod, req.Method, req.Path)
		s.writeStatusError(w, &StatusError{Code: 405, Err: err})
		return req
	}
	switch route {
	case RouteStatic:
		s.serveStatic(w, req)
	case RouteList:
		s.serveList(w, req)
	case RouteJSON:
		s.serveJSON(w, req)
	case RouteAdd:
		s.serveAdd(w, req, br)
	}
	return req
}

// ServeConn handles a single request on conn. The caller closes conn.
func (s *Server) ServeConn(conn net.Conn) {
	timeStart := time.Now()
	_ = conn.SetDeadline(timeStart.Add(s.timeout()))

	// a header line can be as long as the whole header section
	br := bufio.NewReaderSize(conn, MaxHeaderBytes)
	w := &responseWriter{w: bufio.NewWriter(conn)}
	var req *Request
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("ServeConn: panic '%v'\n", r)
			if !w.written() {
				w.writeError(500)
			}
		}
		log.IfErrf(w.flush(), "ServeConn: writing response to %s failed\n", conn.RemoteAddr())
		discardBody(br, req)
		s.logRequest(conn, req, w, time.Since(timeStart))
	}()
	req = s.handle(w, br)
}

// discardBody reads the body we responded to without reading it.
// Closing a socket with unread data sends RST, which can destroy
// the response before the client reads it.
func discardBody(br *bufio.Reader, req *Request) {
	if req == nil || req.bodyRead || req.ContentLength <= 0 {
		return
	}
	_, err := io.CopyN(io.Discard, br, req.ContentLength)
	log.IfErrf(err, "discardBody: reading %d bytes failed with '%s'\n", req.ContentLength, err)
}

func (s *Server) logRequest(conn net.Conn, req *Request, w *responseWriter, dur time.Duration) {
	e := &httplogger.Entry{
		Code:     w.code,
		Size:     w.size,
		Duration: dur,
	}
	if addr := conn.RemoteAddr(); addr != nil {
		e.RemoteAddr = addr.String()
	}
	if req != nil {
		e.Method = req.Method
		e.URI = req.Target
		e.Host = req.Headers["host"]
		e.Headers = req.Headers
	}
	log.Verbosef("%s %s %d %d bytes in %s\n", e.Method, e.URI, e.Code, e.Size, dur)
	log.IfErrf(s.RequestLog.LogReq(e))
}

// Serve accepts connections on ln and handles them one at a time until
// ctx is cancelled. ln is closed when Serve returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.Root == nil || s.Store == nil {
		return errors.New("server: Root and Store must be set")
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = ln.Close()
	}()

	log.Logf("Listening on %s\n", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				log.Logf("Serve: accept failed with '%s', retrying\n", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return err
		}
		log.Verbosef("[%s] CONNECTED\n", conn.RemoteAddr())
		s.ServeConn(conn)
		_ = conn.Close()
		log.Verbosef("[%s] DISCONNECTED\n", conn.RemoteAddr())
	}
}
