package wsgi

import (
	"errors"
	"fmt"
	"iter"
	"net/http"
)

// Reserved environ keys.
const (
	KeyInput        = "wsgi.input"
	KeyErrors       = "wsgi.errors"
	KeyVersion      = "wsgi.version"
	KeyURLScheme    = "wsgi.url_scheme"
	KeyMultithread  = "wsgi.multithread"
	KeyMultiprocess = "wsgi.multiprocess"
	KeyRunOnce      = "wsgi.run_once"
	KeyRoutingArgs  = "wsgiorg.routing_args"
	KeyRequestID    = "gateway.request_id"
)

// Version is the calling convention version reported under wsgi.version.
var Version = [2]int{1, 0}

var (
	// ErrMissingKey is returned by the Environ accessors when a key is absent.
	ErrMissingKey = errors.New("environ key missing")
	// ErrWrongType is returned by the Environ accessors when a key holds a
	// value of an unexpected type.
	ErrWrongType = errors.New("environ key has wrong type")
)

// Environ is the per-request context handed to an App. It holds the CGI
// variables describing the request, the reserved wsgi.* entries and anything
// added by routers or middleware.
type Environ map[string]any

// Input returns the request body stream stored under wsgi.input.
func (e Environ) Input() (InputStream, error) {
	return lookup[InputStream](e, KeyInput)
}

// Errors returns the error stream stored under wsgi.errors.
func (e Environ) Errors() (ErrorStream, error) {
	return lookup[ErrorStream](e, KeyErrors)
}

// String returns the string stored under key.
func (e Environ) String(key string) (string, error) {
	return lookup[string](e, key)
}

// Get returns the string stored under key, or "" if it's missing or not a
// string.
func (e Environ) Get(key string) string {
	s, _ := e[key].(string)
	return s
}

// Clone returns a shallow copy of the environ.
func (e Environ) Clone() Environ {
	c := make(Environ, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

func lookup[T any](e Environ, key string) (T, error) {
	var zero T
	v, ok := e[key]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrWrongType, key, v)
	}
	return t, nil
}

// Header is a single response header. Order and repetition are preserved,
// which is why headers are a slice rather than an http.Header.
type Header struct {
	Name, Value string
}

// Headers is the list passed to StartResponse.
type Headers []Header

// Get returns the value of the first header matching name, case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	name = http.CanonicalHeaderKey(name)
	for _, hdr := range h {
		if http.CanonicalHeaderKey(hdr.Name) == name {
			return hdr.Value, true
		}
	}
	return "", false
}

// Without returns a copy of the headers with every header matching name
// removed.
func (h Headers) Without(name string) Headers {
	name = http.CanonicalHeaderKey(name)
	out := make(Headers, 0, len(h))
	for _, hdr := range h {
		if http.CanonicalHeaderKey(hdr.Name) != name {
			out = append(out, hdr)
		}
	}
	return out
}

// StartResponse is the response-initiation callback. An App calls it exactly
// once, before its Body delivers the first fragment, with a status line such
// as "200 OK" and the response headers.
type StartResponse func(status string, headers Headers) error

// Body is the lazy, single-pass sequence of response fragments produced by an
// App. A non-nil error ends the response; the gateway doesn't pull further.
type Body = iter.Seq2[[]byte, error]

// App is an application that follows the calling convention. The returned
// Body does the work lazily: each fragment is computed only when the gateway
// pulls it.
type App func(env Environ, start StartResponse) Body

// Fail returns a Body that yields only err.
func Fail(err error) Body {
	return func(yield func([]byte, error) bool) {
		yield(nil, err)
	}
}

// Fragments returns a Body that yields each of the given strings in order.
func Fragments(parts ...string) Body {
	return func(yield func([]byte, error) bool) {
		for _, p := range parts {
			if !yield([]byte(p), nil) {
				return
			}
		}
	}
}
