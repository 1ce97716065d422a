// Package echo is a demonstration application: it echoes the request body
// line by line, shows whatever the line iteration left unread, and dumps the
// request environ as HTML. Along the way it writes a few lines to wsgi.errors.
package echo

import (
	"fmt"

	"github.com/augustoroman/wsgi"
	"github.com/augustoroman/wsgi/validate"
)

// Validated is App wrapped with the conformance validator. Serve this one.
var Validated = validate.Wrap(App)

// App is the echo application. All of its work, including the call to start,
// happens lazily as the body is pulled.
func App(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
	return func(yield func([]byte, error) bool) {
		fail := func(err error) { yield(nil, err) }
		emit := func(format string, args ...any) bool {
			return yield(fmt.Appendf(nil, format, args...), nil)
		}

		if err := start("200 OK", wsgi.Headers{{"Content-Type", "text/html"}}); err != nil {
			fail(err)
			return
		}

		errs, err := env.Errors()
		if err != nil {
			fail(err)
			return
		}
		if err := errs.Flush(); err != nil {
			fail(err)
			return
		}
		if _, err := errs.WriteString("test errors\n"); err != nil {
			fail(err)
			return
		}
		if err := errs.Flush(); err != nil {
			fail(err)
			return
		}
		if err := errs.WriteLines("test 1\n", "test 2\n", "test 3\n"); err != nil {
			fail(err)
			return
		}

		if !emit("<u>Input:</u><br />") {
			return
		}
		input, err := env.Input()
		if err != nil {
			fail(err)
			return
		}
		n := 0
		for line, err := range input.Lines() {
			if err != nil {
				fail(err)
				return
			}
			if !emit("[%d] %s<br />", n, line) {
				return
			}
			n++
		}

		rest, err := input.ReadAll()
		if err != nil {
			fail(err)
			return
		}
		if !emit("<br />Total:<br />%s<br />", rest) {
			return
		}

		if !emit("<br /><u>Environment:</u><br />") {
			return
		}
		for key, value := range env {
			if !emit("%s: %v<br />", key, value) {
				return
			}
		}
	}
}
