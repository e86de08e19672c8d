package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/loglens/loglens/internal/record"
)

// loginPage is served in place of the streaming document when auth fails,
// per §4.7.4's "static login page otherwise".
const loginPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>loglens — sign in</title></head>
<body>
  <form id="loglens-login" method="get" action="/">
    <label for="pwd">Password</label>
    <input id="pwd" name="pwd" type="password" autofocus />
    <button type="submit">View logs</button>
  </form>
</body></html>
`

// handleRoot gates handleIndex behind the shared secret, serving the static
// login page instead of a bare 401 body since "/" is a browser-facing route.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if s.secret == "" {
		http.Error(w, "server misconfigured: no password set", http.StatusInternalServerError)
		return
	}
	if !checkSecret(r, s.secret) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, loginPage)
		return
	}
	s.handleIndex(w, r)
}

// handleIndex implements §4.7.4: an immediate prelude, the cached shell
// split around the rows marker, one streamed row per matching record, and
// a closing hydration script.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	spec := parseFilterSpec(r)
	secret := r.URL.Query().Get("pwd")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, "<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>loglens</title></head><body>\n")
	fmt.Fprint(w, "<!--loglens:prelude-->\n")
	fmt.Fprint(w, s.shell.Before)
	flusher.Flush()

	var rowBuf bytes.Buffer
	count := 0
	err := s.reader.Stream(r.Context(), s.cfg.LogPath, spec, func(rec record.Record) bool {
		if r.Context().Err() != nil {
			return false
		}
		rowBuf.Reset()
		if err := renderRow(&rowBuf, rowView{
			Time:   rec.Time.UTC().Format("2006-01-02 15:04:05.000"),
			Level:  string(rec.Level),
			Module: rec.Module,
			Msg:    rec.Msg,
		}); err != nil {
			s.logger.Warn("html: row render failed", "error", err)
			return true
		}
		if _, werr := w.Write(rowBuf.Bytes()); werr != nil {
			return false
		}
		count++
		flusher.Flush()
		return true
	})
	if err != nil {
		s.logger.Warn("html: stream failed", "error", err)
		fmt.Fprintf(w, "<!--loglens:error %s-->\n", template.HTMLEscapeString(err.Error()))
	}

	fmt.Fprint(w, s.shell.After)
	fmt.Fprintf(w, "\n<script>window.__LOGLENS__ = {secret: %q, count: %d};</script>\n</body></html>\n",
		secret, count)
	flusher.Flush()
}
