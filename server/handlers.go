package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"github.com/kjk/studentdb/form"
	"github.com/kjk/studentdb/log"
	"github.com/kjk/studentdb/store"
	"github.com/kjk/studentdb/u"
)

// Placeholder in app_list.html replaced with table rows
const Placeholder = "{{students}}"

// RenderRow renders a record as a table row
func RenderRow(r *store.Record) string {
	return fmt.Sprintf(`
<tr>
    <td>%d</td>
    <td>%s</td>
    <td>%s</td>
</tr>
`, r.Number, html.EscapeString(r.First), html.EscapeString(r.Last))
}

// RenderRows concatenates rows for all records
func RenderRows(records []*store.Record) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		buf.WriteString(RenderRow(r))
	}
	return buf.Bytes()
}

// Substitute returns a copy of tmpl with every Placeholder replaced by rows
func Substitute(tmpl []byte, rows []byte) []byte {
	return bytes.ReplaceAll(tmpl, []byte(Placeholder), rows)
}

// fsName converts url path to a name valid for fs.FS.
// Returns false if the path escapes the root.
func fsName(uriPath string) (string, bool) {
	p, err := url.PathUnescape(uriPath)
	if err != nil {
		return "", false
	}
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" {
		name = "."
	}
	return name, fs.ValidPath(name)
}

func (s *Server) readFile(uriPath string) ([]byte, error) {
	name, ok := fsName(uriPath)
	if !ok {
		return nil, fs.ErrNotExist
	}
	return fs.ReadFile(s.Root, name)
}

// isHidden checks the decoded and cleaned name so that e.g. "%2Edb"
// can't sneak past the checks
func (s *Server) isHidden(name string) bool {
	if isBadClientPath("/" + name) {
		return true
	}
	base := path.Base(name)
	for _, hidden := range s.HiddenFiles {
		if strings.EqualFold(base, hidden) {
			return true
		}
	}
	return false
}

func (s *Server) isDir(uriPath string) bool {
	name, ok := fsName(uriPath)
	if !ok {
		return false
	}
	st, err := fs.Stat(s.Root, name)
	return err == nil && st.IsDir()
}

// redirectURL is an absolute url using host header as sent by the client
func redirectURL(req *Request, uriPath string) string {
	return "http://" + req.Headers["host"] + uriPath
}

func (s *Server) serveStatic(w *responseWriter, req *Request) {
	p := req.Path
	if strings.HasSuffix(p, "/") {
		w.writeRedirect(redirectURL(req, p+"index.html"))
		return
	}
	// no extension, might be a directory
	if !strings.Contains(p, ".") && s.isDir(p) {
		w.writeRedirect(redirectURL(req, p+"/index.html"))
		return
	}
	name, ok := fsName(p)
	if !ok {
		log.Verbosef("serveStatic: invalid path '%s'\n", p)
		w.writeError(404)
		return
	}
	if s.isHidden(name) {
		log.Event("bad_client", "path", p)
		w.writeError(404)
		return
	}
	d, err := fs.ReadFile(s.Root, name)
	if err != nil {
		log.Verbosef("serveStatic: '%s' failed with '%s'\n", p, err)
		w.writeError(404)
		return
	}
	ct := u.MimeTypeFromFileName(name)
	if !s.ServeCompressed || !u.IsCompressibleMimeType(ct) {
		w.writeOK(ct, d)
		return
	}
	body, enc := compressForClient(req.Headers["accept-encoding"], d)
	if enc == "" {
		w.writeOK(ct, d)
		return
	}
	hdrs := []header{
		{"content-type", ct},
		{"content-encoding", enc},
		{"vary", "accept-encoding"},
	}
	w.write(200, hdrs, body)
}

// acceptsEncoding checks if encoding is listed in accept-encoding header
// e.g. "gzip, deflate, br;q=0.9"
func acceptsEncoding(acceptEncoding string, encoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(part, ";")
		if !strings.EqualFold(strings.TrimSpace(name), encoding) {
			continue
		}
		q := strings.ReplaceAll(params, " ", "")
		return q != "q=0" && q != "q=0.0"
	}
	return false
}

// compressForClient compresses d with the best encoding the client accepts.
// Returns d and "" if none of the encodings apply.
func compressForClient(acceptEncoding string, d []byte) ([]byte, string) {
	if len(d) == 0 {
		return d, ""
	}
	if acceptsEncoding(acceptEncoding, "br") {
		if d2, err := u.BrCompressDataDefault(d); err == nil {
			return d2, "br"
		}
	}
	if acceptsEncoding(acceptEncoding, "zstd") {
		if d2, err := u.ZstdCompressData(d); err == nil {
			return d2, "zstd"
		}
	}
	return d, ""
}

// queryFromParams parses query string as criteria and queries the store
func (s *Server) queryFromParams(req *Request) ([]*store.Record, error) {
	params, err := form.Parse(req.RawQuery)
	if err != nil {
		return nil, badRequest(err)
	}
	req.Params = params
	records, err := s.Store.QueryCriteria(store.Criteria(params))
	if err != nil {
		return nil, badRequest(err)
	}
	return records, nil
}

func (s *Server) writeStatusError(w *responseWriter, err error) {
	var serr *StatusError
	if !errors.As(err, &serr) {
		serr = &StatusError{Code: 500, Err: err}
	}
	if serr.Code >= 500 {
		log.Errorf("%s\n", serr)
	} else {
		log.Verbosef("%s\n", serr)
	}
	w.writeError(serr.Code)
}

func (s *Server) serveList(w *responseWriter, req *Request) {
	records, err := s.queryFromParams(req)
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	name := RouteList.Template()
	tmpl, err := s.readFile(name)
	if err != nil {
		log.Errorf("serveList: template '%s' failed with '%s'\n", name, err)
		w.writeError(404)
		return
	}
	body := Substitute(tmpl, RenderRows(records))
	w.writeOK(u.MimeTypeFromFileName(name), body)
}

func (s *Server) serveJSON(w *responseWriter, req *Request) {
	records, err := s.queryFromParams(req)
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	if records == nil {
		// marshal as [] and not null
		records = []*store.Record{}
	}
	body, err := json.Marshal(records)
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	w.writeOK("application/json", body)
}

func (s *Server) serveAdd(w *responseWriter, req *Request, br *bufio.Reader) {
	if err := req.ReadBody(br); err != nil {
		s.writeStatusError(w, err)
		return
	}
	params, err := form.Parse(string(req.Body))
	if err != nil {
		s.writeStatusError(w, badRequest(err))
		return
	}
	req.Params = params
	first, hasFirst := params["first"]
	last, hasLast := params["last"]
	if !hasFirst || !hasLast {
		s.writeStatusError(w, badRequest(fmt.Errorf("%w: need both 'first' and 'last'", ErrMissingField)))
		return
	}
	rec, err := s.Store.Append(first, last)
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	log.Event("record_added", "number", rec.Number, "first", rec.First, "last", rec.Last)

	// we echo the template page, it has no placeholders
	name := RouteAdd.Template()
	tmpl, err := s.readFile(name)
	if err != nil {
		log.Errorf("serveAdd: template '%s' failed with '%s'\n", name, err)
		w.writeError(404)
		return
	}
	w.writeOK(u.MimeTypeFromFileName(name), tmpl)
}
