// Package validate checks that an application and the gateway hosting it both
// follow the wsgi calling convention.
//
// Wrap an App once, at startup:
//
//	var app = validate.Wrap(myApp)
//
// The wrapped App behaves exactly like the original (same fragments, same
// order) unless a rule is broken, in which case a *Violation is reported as
// early as possible: from StartResponse when the status or headers are bad,
// or as the error element of the body otherwise. A violation reported by
// StartResponse also ends the body, so an app can't ignore it. Suspicious but legal usage
// is logged as a warning.
package validate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/augustoroman/wsgi"
)

// ErrViolation matches every *Violation with errors.Is.
var ErrViolation = errors.New("wsgi convention violated")

// Violation describes a broken rule of the calling convention.
type Violation struct {
	Msg string
}

func (v *Violation) Error() string { return "wsgi validation: " + v.Msg }

func (v *Violation) Is(target error) bool { return target == ErrViolation }

func violation(format string, args ...any) *Violation {
	return &Violation{Msg: fmt.Sprintf(format, args...)}
}

// Option configures the validator.
type Option func(*validator)

// WithLogger sets where warnings go. The default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(v *validator) {
		if log != nil {
			v.log = log
		}
	}
}

type validator struct {
	log *slog.Logger
}

// Middleware returns Wrap as a wsgi.Middleware.
func Middleware(opts ...Option) wsgi.Middleware {
	return func(app wsgi.App) wsgi.App { return Wrap(app, opts...) }
}

// Wrap returns app decorated with conformance checks.
func Wrap(app wsgi.App, opts ...Option) wsgi.App {
	v := &validator{log: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
		if err := v.checkEnviron(env); err != nil {
			return wsgi.Fail(err)
		}
		if start == nil {
			return wsgi.Fail(violation("start_response is nil"))
		}

		state := &callState{}
		checkedStart := func(status string, headers wsgi.Headers) error {
			if err := v.checkStart(state, status, headers); err != nil {
				state.fail(err)
				return err
			}
			state.started = true
			return start(status, headers)
		}

		body := app(env, checkedStart)
		if body == nil {
			return wsgi.Fail(violation("application returned a nil body"))
		}
		return state.watch(body)
	}
}

func (v *validator) checkStart(state *callState, status string, headers wsgi.Headers) error {
	if state.started {
		return violation("start_response called a second time")
	}
	code, err := v.checkStatus(status)
	if err != nil {
		return err
	}
	if err := checkHeaders(headers); err != nil {
		return err
	}
	return checkContentType(code, headers)
}

// callState follows one request through the wrapped App.
type callState struct {
	started  bool
	iterated bool
	// violation is the first rule broken through StartResponse. It ends the
	// body even if the app ignored the returned error.
	violation error
}

func (s *callState) fail(err error) {
	if s.violation == nil {
		s.violation = err
	}
}

// watch checks how body is produced and consumed, passing every fragment and
// error through unchanged.
func (s *callState) watch(body wsgi.Body) wsgi.Body {
	return func(yield func([]byte, error) bool) {
		if s.iterated {
			yield(nil, violation("body iterated more than once"))
			return
		}
		s.iterated = true
		if s.violation != nil {
			yield(nil, s.violation)
			return
		}
		for chunk, err := range body {
			if err != nil {
				yield(chunk, err)
				return
			}
			if s.violation != nil {
				yield(nil, s.violation)
				return
			}
			if !s.started {
				yield(nil, violation("body produced a fragment before start_response was called"))
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
		switch {
		case s.violation != nil:
			yield(nil, s.violation)
		case !s.started:
			yield(nil, violation("body ended without start_response being called"))
		}
	}
}
