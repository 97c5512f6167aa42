package server

import (
	"bufio"
	"strconv"

	"github.com/kjk/studentdb/u"
)

type header struct {
	name  string
	value string
}

var statusTexts = map[int]string{
	200: "OK",
	301: "Moved Permanently",
	400: "Bad Request",
	404: "Not Found",
	405: "Method Not Allowed",
	500: "Internal Server Error",
}

func statusText(code int) string {
	if s, ok := statusTexts[code]; ok {
		return s
	}
	return "Unknown"
}

var errorBodies = map[int]string{
	400: `<!doctype html>
<h1>400 Bad Request</h1>
<p>The request could not be understood.</p>
`,
	404: `<!doctype html>
<h1>404 Page not found</h1>
<p>Page cannot be found.</p>
`,
	405: `<!doctype html>
<h1>405 Method Not Allowed</h1>
<p>Method Not Allowed.</p>
`,
	500: `<!doctype html>
<h1>500 Internal Server Error</h1>
<p>The request could not be completed.</p>
`,
}

// responseWriter writes exactly one response
type responseWriter struct {
	w *bufio.Writer
	// status code of the response, 0 if not written yet
	code int
	// bytes written, including status line and headers
	size int64
	err  error
}

func (w *responseWriter) writeString(s string) {
	if w.err != nil {
		return
	}
	n, err := w.w.WriteString(s)
	w.size += int64(n)
	w.err = err
}

func (w *responseWriter) written() bool {
	return w.code != 0
}

// write sends status line, headers and body. content-length and
// connection headers are always added.
func (w *responseWriter) write(code int, hdrs []header, body []byte) {
	u.PanicIf(w.written(), "response already written with code %d", w.code)
	w.code = code
	w.writeString("HTTP/1.1 " + strconv.Itoa(code) + " " + statusText(code) + "\r\n")
	for _, h := range hdrs {
		w.writeString(h.name + ": " + h.value + "\r\n")
	}
	w.writeString("content-length: " + strconv.Itoa(len(body)) + "\r\n")
	w.writeString("connection: Close\r\n\r\n")
	if w.err != nil || len(body) == 0 {
		return
	}
	n, err := w.w.Write(body)
	w.size += int64(n)
	w.err = err
}

func (w *responseWriter) writeOK(contentType string, body []byte) {
	w.write(200, []header{{"content-type", contentType}}, body)
}

// writeError sends a canned html page for an error status code
func (w *responseWriter) writeError(code int) {
	body := errorBodies[code]
	w.write(code, []header{{"content-type", "text/html"}}, []byte(body))
}

func (w *responseWriter) writeRedirect(location string) {
	w.write(301, []header{{"location", location}}, nil)
}

func (w *responseWriter) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}
