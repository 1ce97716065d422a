package wsgi

import (
	"net/http"
)

// ResponseWriter carries an App's response onto an http.ResponseWriter. It
// holds the status and headers given to StartResponse until the first
// non-empty fragment is written, and tracks what was sent for the access log.
type ResponseWriter struct {
	w http.ResponseWriter

	status  int
	headers Headers
	pending bool // StartResponse called, headers not yet written

	Size int // The size of the body written so far, in bytes.
	Code int // The status code sent, or 0 if nothing has been sent yet.
}

func newResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{w: w}
}

// Started reports whether StartResponse has been accepted.
func (w *ResponseWriter) Started() bool { return w.pending || w.Code != 0 }

// Sent reports whether the status line has gone out on the wire.
func (w *ResponseWriter) Sent() bool { return w.Code != 0 }

func (w *ResponseWriter) start(status int, headers Headers) {
	w.status, w.headers, w.pending = status, headers, true
}

func (w *ResponseWriter) sendHeaders() {
	if !w.pending {
		return
	}
	w.pending = false
	h := w.w.Header()
	for _, hdr := range w.headers {
		h.Add(hdr.Name, hdr.Value)
	}
	w.Code = w.status
	w.w.WriteHeader(w.status)
}

// write sends a body fragment, writing the held headers first, and flushes
// it to the client immediately.
func (w *ResponseWriter) write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	w.sendHeaders()
	n, err := w.w.Write(p)
	w.Size += n
	if err != nil {
		return err
	}
	if f, ok := w.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// finish sends the held headers of an empty body.
func (w *ResponseWriter) finish() { w.sendHeaders() }

// fail responds to err with the error handler, if nothing was sent yet.
func (w *ResponseWriter) fail(r *http.Request, l *LogEntry, err error) bool {
	if w.Sent() {
		return false
	}
	w.pending = false
	rec := &statusRecorder{ResponseWriter: w.w}
	HandleError(rec, r, l, err)
	w.Code, w.Size = rec.code, rec.size
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	code, size int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.code == 0 {
		s.code = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.code == 0 {
		s.code = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.size += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
