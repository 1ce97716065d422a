package wsgi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"

	"github.com/google/uuid"
)

// Gateway hosts an App on net/http. It builds the environ for each request,
// hands the App a StartResponse, and copies the fragments of the returned Body
// to the client as they're produced.
//
// A Gateway is safe for concurrent use; every request gets its own environ
// and streams.
type Gateway struct {
	app         App
	log         *slog.Logger
	scheme      string
	errorStream func(r *http.Request) ErrorStream
	requestID   func() string
	maxBody     int64
	accessLog   bool
}

// NewGateway creates a Gateway serving app.
func NewGateway(app App, opts ...Option) *Gateway {
	g := &Gateway{
		app:       app,
		log:       slog.Default(),
		requestID: func() string { return uuid.New().String() },
		accessLog: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.Serve(w, r, nil)
}

// Serve handles r, adding the entries of extra to the environ. Router
// adapters use it to pass on their path parameters.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, extra Environ) {
	g.ServeApp(w, r, g.app, extra)
}

// ServeApp is Serve for an App other than the one the Gateway was created
// with, sharing the Gateway's configuration.
func (g *Gateway) ServeApp(w http.ResponseWriter, r *http.Request, app App, extra Environ) {
	rw := newResponseWriter(w)
	entry := NewLogEntry(r)
	if g.accessLog {
		defer entry.Commit(rw)
	}

	var id string
	if g.requestID != nil {
		id = g.requestID()
		w.Header().Set("X-Request-ID", id)
		entry.Note["id"] = id
	}
	if g.maxBody > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, g.maxBody)
	}

	env, err := NewEnviron(r, g.scheme)
	if err != nil {
		rw.fail(r, entry, Error{Code: http.StatusBadRequest, LogMsg: "Bad request", Cause: err})
		return
	}
	for k, v := range extra {
		env[k] = v
	}
	if id != "" {
		env[KeyRequestID] = id
	}
	if g.accessLog {
		env[keyLogEntry] = entry
	}
	errs := g.newErrorStream(r, id)
	env[KeyErrors] = errs
	defer func() {
		if err := errs.Flush(); err != nil {
			g.log.Warn("flushing wsgi.errors", slog.Any("error", err))
		}
	}()

	start := func(status string, headers Headers) error {
		if rw.Started() {
			return ErrStartedTwice
		}
		code, err := ParseStatus(status)
		if err != nil {
			return err
		}
		rw.start(code, headers)
		return nil
	}

	if err := g.run(app, rw, env, start, entry); err != nil {
		g.abort(rw, r, entry, err)
	}
}

func (g *Gateway) newErrorStream(r *http.Request, id string) ErrorStream {
	if g.errorStream != nil {
		return g.errorStream(r)
	}
	log := g.log.With(slog.String("component", "wsgi.errors"))
	if id != "" {
		return NewLogStream(log, slog.String("request_id", id))
	}
	return NewLogStream(log)
}

// run calls the App and drains its body into rw.
func (g *Gateway) run(app App, rw *ResponseWriter, env Environ, start StartResponse, entry *LogEntry) (err error) {
	defer func() {
		if x := recover(); x != nil {
			err = newPanicError(x)
		}
	}()

	if app == nil {
		return ErrNilApp
	}
	body := app(env, start)
	if body == nil {
		return ErrNilBody
	}
	for chunk, err := range body {
		if err != nil {
			return err
		}
		if len(chunk) > 0 && !rw.Started() {
			return fmt.Errorf("fragment produced before start_response: %w", ErrNoStartResponse)
		}
		if werr := rw.write(chunk); werr != nil {
			// The client went away; nothing more can be delivered.
			g.log.Debug("writing response", slog.Any("error", werr))
			entry.Error = werr
			return nil
		}
		entry.Fragments++
	}
	if !rw.Started() {
		return ErrNoStartResponse
	}
	rw.finish()
	return nil
}

func (g *Gateway) abort(rw *ResponseWriter, r *http.Request, entry *LogEntry, err error) {
	if rw.fail(r, entry, err) {
		return
	}
	entry.Error = err
	g.log.Error("response aborted after headers were sent",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
}

// ParseStatus returns the code of a status line such as "200 OK".
func ParseStatus(status string) (int, error) {
	if len(status) < 3 || (len(status) > 3 && status[3] != ' ') {
		return 0, fmt.Errorf("%w: %q", ErrBadStatus, status)
	}
	code, err := strconv.Atoi(status[:3])
	if err != nil || code < 100 {
		return 0, fmt.Errorf("%w: %q", ErrBadStatus, status)
	}
	return code, nil
}

// PanicError is the error reported when an App or its Body panics. It
// includes the panic'd value and the goroutine's stack at that point.
type PanicError struct {
	Val   any
	Stack string
}

func newPanicError(x any) PanicError {
	var stack [8192]byte
	n := runtime.Stack(stack[:], false)
	return PanicError{Val: x, Stack: string(stack[:n])}
}

func (p PanicError) Error() string {
	return fmt.Sprintf("panic in application: %v", p.Val)
}

// IsPanic reports whether err came from a panicking App.
func IsPanic(err error) bool {
	var p PanicError
	return errors.As(err, &p)
}
