package wsgi

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

// Injected for testing
var time_Now = time.Now
var os_Stderr io.Writer = os.Stderr

// LogEntry is the access-log record the Gateway keeps for each request.  All
// fields other than Note are filled in by the Gateway.  Note is a generic
// key-value string map for additional per-request metadata; an App can reach
// it through the environ with EntryFrom.
type LogEntry struct {
	RemoteIp     string
	Start        time.Time
	Request      *http.Request
	StatusCode   int
	ResponseSize int
	Fragments    int
	Elapsed      time.Duration
	Error        error
	Note         map[string]string
	// set to true to suppress logging this request
	Quiet bool
}

const keyLogEntry = "gateway.log_entry"

// EntryFrom returns the access-log entry of the request env belongs to, or
// nil when the environ wasn't built by a Gateway with access logging.
func EntryFrom(env Environ) *LogEntry {
	e, _ := env[keyLogEntry].(*LogEntry)
	return e
}

func (entry *LogEntry) String() string { return "<gateway.LogEntry>" }

// NoLog is a middleware that suppresses the access log line for requests the
// wrapped App handles.  For example:
//
//	// suppress logging of the favicon request to reduce log spam.
//	router.Get("/favicon.ico", wsgi.Chain(notFound, wsgi.NoLog))
func NoLog(next App) App {
	return func(env Environ, start StartResponse) Body {
		if e := EntryFrom(env); e != nil {
			e.Quiet = true
		}
		return next(env, start)
	}
}

// NewLogEntry creates a *LogEntry and initializes it with basic request
// information.
func NewLogEntry(r *http.Request) *LogEntry {
	return &LogEntry{
		RemoteIp: remoteIp(r),
		Start:    time_Now(),
		Request:  r,
		Note:     map[string]string{},
	}
}

// Commit fills in the remaining *LogEntry fields and writes the entry out.
func (entry *LogEntry) Commit(w *ResponseWriter) {
	entry.Elapsed = time_Now().Sub(entry.Start)
	entry.ResponseSize = w.Size
	entry.StatusCode = w.Code
	WriteLog(*entry)
}

// Some nice escape codes
const (
	_GREEN  = "\033[32m"
	_YELLOW = "\033[33m"
	_RESET  = "\033[0m"
	_RED    = "\033[91m"
)

// WriteLog is called to actually write a LogEntry out to the log. By default,
// it writes to stderr and colors normal requests green, slow requests yellow,
// and errors red.  You can replace the function to adjust the formatting or use
// whatever logging library you like.
var WriteLog = func(e LogEntry) {
	if e.Quiet {
		return
	}
	col, reset := logColors(e)
	fmt.Fprintf(os_Stderr, "%s%s %s \"%s %s\" (%d %dB/%d %s) %s%s\n",
		col,
		e.Start.Format(time.RFC3339), e.RemoteIp,
		e.Request.Method, e.Request.RequestURI,
		e.StatusCode, e.ResponseSize, e.Fragments, e.Elapsed,
		e.NotesAndError(),
		reset)
}

// NotesAndError formats the Note values and error (if any) for logging.
func (l LogEntry) NotesAndError() string {
	pairs := make([]string, 0, len(l.Note))
	for k, v := range l.Note {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, v))
	}
	sort.Strings(pairs)
	msg := strings.Join(pairs, " ")
	if l.Error != nil {
		msg += "\n  ERROR: " + l.Error.Error()
	}
	return msg
}

func logColors(e LogEntry) (start, reset string) {
	col, reset := _GREEN, _RESET
	if e.Elapsed > 30*time.Millisecond {
		col = _YELLOW
	}
	if e.StatusCode >= 400 || e.Error != nil {
		col = _RED
	}
	return col, reset
}

// remoteIp is the client address shown in the access log: X-Real-IP, then
// X-Forwarded-For, then the connection's RemoteAddr.
func remoteIp(r *http.Request) string {
	if addr := r.Header.Get("X-Real-IP"); addr != "" {
		return addr
	} else if addr := r.Header.Get("X-Forwarded-For"); addr != "" {
		return addr
	}
	return r.RemoteAddr
}
