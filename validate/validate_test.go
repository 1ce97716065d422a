package validate

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/augustoroman/wsgi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func environ() wsgi.Environ {
	return wsgi.Environ{
		"REQUEST_METHOD":  "GET",
		"SCRIPT_NAME":     "",
		"PATH_INFO":       "/",
		"QUERY_STRING":    "",
		"SERVER_NAME":     "localhost",
		"SERVER_PORT":     "80",
		"SERVER_PROTOCOL": "HTTP/1.1",
		"CONTENT_LENGTH":  "0",

		wsgi.KeyVersion:      wsgi.Version,
		wsgi.KeyURLScheme:    "http",
		wsgi.KeyMultithread:  true,
		wsgi.KeyMultiprocess: false,
		wsgi.KeyRunOnce:      false,
		wsgi.KeyInput:        wsgi.NewInput(strings.NewReader(""), 0),
		wsgi.KeyErrors:       wsgi.NewWriterStream(&bytes.Buffer{}),
	}
}

func noStart(string, wsgi.Headers) error { return nil }

// respond is an App that starts with status and headers and yields parts.
func respond(status string, headers wsgi.Headers, parts ...string) wsgi.App {
	return func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
		return func(yield func([]byte, error) bool) {
			if err := start(status, headers); err != nil {
				yield(nil, err)
				return
			}
			for _, p := range parts {
				if !yield([]byte(p), nil) {
					return
				}
			}
		}
	}
}

var textHTML = wsgi.Headers{{"Content-Type", "text/html"}}

func run(app wsgi.App, env wsgi.Environ, opts ...Option) ([]string, error) {
	var out []string
	for chunk, err := range Wrap(app, opts...)(env, noStart) {
		if err != nil {
			return out, err
		}
		out = append(out, string(chunk))
	}
	return out, nil
}

func captureLogs() (*bytes.Buffer, Option) {
	var buf bytes.Buffer
	return &buf, WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))
}

func TestWrapPassesFragmentsThrough(t *testing.T) {
	parts := []string{"a", "", "bc", "<br />"}
	out, err := run(respond("200 OK", textHTML, parts...), environ())
	require.NoError(t, err)
	assert.Equal(t, parts, out)
}

func TestWrapPassesErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	app := func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
		return func(yield func([]byte, error) bool) {
			start("200 OK", textHTML)
			if yield([]byte("x"), nil) {
				yield(nil, boom)
			}
		}
	}
	out, err := run(app, environ())
	assert.Equal(t, []string{"x"}, out)
	assert.Same(t, boom, err)
}

func TestEnvironRules(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(env wsgi.Environ)
		msg    string // expected violation substring, "" for none
	}{
		{"valid", func(wsgi.Environ) {}, ""},
		{"missing method", func(env wsgi.Environ) { delete(env, "REQUEST_METHOD") }, `"REQUEST_METHOD"`},
		{"missing input", func(env wsgi.Environ) { delete(env, wsgi.KeyInput) }, `"wsgi.input"`},
		{"missing errors", func(env wsgi.Environ) { delete(env, wsgi.KeyErrors) }, `"wsgi.errors"`},
		{"http content type", func(env wsgi.Environ) { env["HTTP_CONTENT_TYPE"] = "text/plain" }, "HTTP_CONTENT_TYPE"},
		{"http content length", func(env wsgi.Environ) { env["HTTP_CONTENT_LENGTH"] = "3" }, "HTTP_CONTENT_LENGTH"},
		{"non-string cgi var", func(env wsgi.Environ) { env["SERVER_PORT"] = 80 }, "must be a string"},
		{"non-string header", func(env wsgi.Environ) { env["HTTP_X_COUNT"] = 3 }, "must be a string"},
		{"bad version", func(env wsgi.Environ) { env[wsgi.KeyVersion] = "1.0" }, "wsgi.version"},
		{"bad input", func(env wsgi.Environ) { env[wsgi.KeyInput] = strings.NewReader("") }, "wsgi.input"},
		{"bad errors", func(env wsgi.Environ) { env[wsgi.KeyErrors] = &bytes.Buffer{} }, "wsgi.errors"},
		{"non-bool flag", func(env wsgi.Environ) { env[wsgi.KeyRunOnce] = "no" }, "must be a bool"},
		{"bad scheme", func(env wsgi.Environ) { env[wsgi.KeyURLScheme] = "ftp" }, "url_scheme"},
		{"bad content length", func(env wsgi.Environ) { env["CONTENT_LENGTH"] = "-1" }, "CONTENT_LENGTH"},
		{"empty content length", func(env wsgi.Environ) { env["CONTENT_LENGTH"] = "" }, ""},
		{"relative script name", func(env wsgi.Environ) { env["SCRIPT_NAME"] = "app" }, "SCRIPT_NAME"},
		{"relative path info", func(env wsgi.Environ) { env["PATH_INFO"] = "x" }, "PATH_INFO"},
		{"root script name", func(env wsgi.Environ) { env["SCRIPT_NAME"] = "/" }, `SCRIPT_NAME cannot be "/"`},
		{"mounted", func(env wsgi.Environ) { env["SCRIPT_NAME"] = "/app"; env["PATH_INFO"] = "" }, ""},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			env := environ()
			test.modify(env)
			called := false
			app := func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
				called = true
				return respond("200 OK", textHTML, "ok")(env, start)
			}
			_, err := run(app, env)
			if test.msg == "" {
				assert.NoError(t, err)
				assert.True(t, called)
				return
			}
			require.ErrorIs(t, err, ErrViolation)
			assert.Contains(t, err.Error(), test.msg)
			assert.False(t, called, "the app isn't called with a bad environ")
		})
	}
}

func TestNilEnviron(t *testing.T) {
	_, err := run(respond("200 OK", textHTML), nil)
	assert.ErrorIs(t, err, ErrViolation)
}

func TestEnvironWarnings(t *testing.T) {
	logs, opt := captureLogs()
	env := environ()
	env["REQUEST_METHOD"] = "BREW"
	env["PATH_INFO"] = ""
	_, err := run(respond("200 OK", textHTML), env, opt)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "unknown REQUEST_METHOD")
	assert.Contains(t, logs.String(), "method=BREW")
	assert.Contains(t, logs.String(), "both empty")
}

func TestStatusRules(t *testing.T) {
	testCases := []struct {
		status string
		msg    string
		warn   bool
	}{
		{"200 OK", "", false},
		{"404 Not Found", "", false},
		{"200 ", "", true},
		{"200", "", true},
		{"OK", "at least 4 characters", false},
		{"20 OK", "three-digit code", false},
		{"abc Nope", "three-digit code", false},
		{"099 Low", "invalid", false},
		{"200OK", "needs a space", false},
	}
	for _, test := range testCases {
		t.Run(test.status, func(t *testing.T) {
			logs, opt := captureLogs()
			var startErr error
			app := func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
				startErr = start(test.status, textHTML)
				return wsgi.Fragments()
			}
			_, err := run(app, environ(), opt)
			if test.msg == "" {
				assert.NoError(t, startErr)
				assert.NoError(t, err)
			} else {
				require.ErrorIs(t, startErr, ErrViolation)
				assert.Contains(t, startErr.Error(), test.msg)
				assert.Equal(t, startErr, err, "the body reports the same violation")
			}
			assert.Equal(t, test.warn, strings.Contains(logs.String(), "no reason phrase"), logs.String())
		})
	}
}

func TestHeaderRules(t *testing.T) {
	testCases := []struct {
		name    string
		status  string
		headers wsgi.Headers
		msg     string
	}{
		{"ok", "200 OK", wsgi.Headers{{"Content-Type", "text/plain"}, {"X-Thing", "a\tb"}}, ""},
		{"repeated headers", "200 OK", wsgi.Headers{{"Content-Type", "text/plain"}, {"Set-Cookie", "a=1"}, {"Set-Cookie", "b=2"}}, ""},
		{"status header", "200 OK", wsgi.Headers{{"Content-Type", "text/plain"}, {"Status", "200"}}, "Status header"},
		{"empty name", "200 OK", wsgi.Headers{{"Content-Type", "text/plain"}, {"", "x"}}, "empty name"},
		{"bad name char", "200 OK", wsgi.Headers{{"Content-Type", "text/plain"}, {"X Thing", "x"}}, "invalid character"},
		{"trailing dash", "200 OK", wsgi.Headers{{"Content-Type", "text/plain"}, {"X-Thing-", "x"}}, "may not end"},
		{"trailing underscore", "200 OK", wsgi.Headers{{"Content-Type", "text/plain"}, {"X_Thing_", "x"}}, "may not end"},
		{"control char", "200 OK", wsgi.Headers{{"Content-Type", "text/plain"}, {"X-Thing", "a\nb"}}, "control character"},
		{"missing content type", "200 OK", wsgi.Headers{{"X-Thing", "x"}}, "no Content-Type"},
		{"lowercase content type", "200 OK", wsgi.Headers{{"content-type", "text/plain"}}, ""},
		{"no content with type", "204 No Content", wsgi.Headers{{"Content-Type", "text/plain"}}, "must not return content"},
		{"not modified with type", "304 Not Modified", wsgi.Headers{{"Content-Type", "text/plain"}}, "must not return content"},
		{"no content", "204 No Content", nil, ""},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			var startErr error
			app := func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
				startErr = start(test.status, test.headers)
				return wsgi.Fragments()
			}
			_, err := run(app, environ())
			if test.msg == "" {
				assert.NoError(t, startErr)
				assert.NoError(t, err)
			} else {
				require.ErrorIs(t, startErr, ErrViolation)
				assert.Contains(t, startErr.Error(), test.msg)
				assert.Equal(t, startErr, err, "the body reports the same violation")
			}
		})
	}
}

func TestStartResponseRules(t *testing.T) {
	t.Run("called twice", func(t *testing.T) {
		var second error
		app := func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
			require.NoError(t, start("200 OK", textHTML))
			second = start("200 OK", textHTML)
			return wsgi.Fragments("x")
		}
		out, err := run(app, environ())
		assert.Empty(t, out)
		require.ErrorIs(t, err, ErrViolation)
		assert.Contains(t, err.Error(), "called a second time")
		assert.ErrorIs(t, second, ErrViolation)
	})

	t.Run("called twice from the body", func(t *testing.T) {
		app := func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
			return func(yield func([]byte, error) bool) {
				start("200 OK", textHTML)
				if !yield([]byte("a"), nil) {
					return
				}
				start("500 Oops", textHTML)
				yield([]byte("b"), nil)
			}
		}
		out, err := run(app, environ())
		assert.Equal(t, []string{"a"}, out)
		require.ErrorIs(t, err, ErrViolation)
		assert.Contains(t, err.Error(), "called a second time")
	})

	t.Run("ignored bad status", func(t *testing.T) {
		app := func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
			start("2xx OK", textHTML)
			return wsgi.Fragments("x")
		}
		out, err := run(app, environ())
		assert.Empty(t, out)
		require.ErrorIs(t, err, ErrViolation)
		assert.Contains(t, err.Error(), "three-digit code")
	})

	t.Run("never called", func(t *testing.T) {
		app := func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
			return wsgi.Fragments()
		}
		_, err := run(app, environ())
		require.ErrorIs(t, err, ErrViolation)
		assert.Contains(t, err.Error(), "without start_response")
	})

	t.Run("fragment before start", func(t *testing.T) {
		app := func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
			return wsgi.Fragments("early")
		}
		out, err := run(app, environ())
		assert.Empty(t, out)
		require.ErrorIs(t, err, ErrViolation)
		assert.Contains(t, err.Error(), "before start_response")
	})

	t.Run("started lazily", func(t *testing.T) {
		out, err := run(respond("200 OK", textHTML, "late"), environ())
		require.NoError(t, err)
		assert.Equal(t, []string{"late"}, out)
	})

	t.Run("nil start", func(t *testing.T) {
		var err error
		for _, e := range Wrap(respond("200 OK", textHTML))(environ(), nil) {
			err = e
		}
		assert.ErrorIs(t, err, ErrViolation)
	})

	t.Run("downstream start error", func(t *testing.T) {
		refused := errors.New("refused")
		var startErr error
		app := func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
			startErr = start("200 OK", textHTML)
			return wsgi.Fail(startErr)
		}
		body := Wrap(app)(environ(), func(string, wsgi.Headers) error { return refused })
		for range body {
		}
		assert.Same(t, refused, startErr)
	})
}

func TestBodyRules(t *testing.T) {
	t.Run("nil body", func(t *testing.T) {
		app := func(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body { return nil }
		_, err := run(app, environ())
		require.ErrorIs(t, err, ErrViolation)
		assert.Contains(t, err.Error(), "nil body")
	})

	t.Run("iterated twice", func(t *testing.T) {
		body := Wrap(respond("200 OK", textHTML, "a"))(environ(), noStart)
		for range body {
		}
		var err error
		for _, e := range body {
			err = e
		}
		require.ErrorIs(t, err, ErrViolation)
		assert.Contains(t, err.Error(), "more than once")
	})

	t.Run("early stop", func(t *testing.T) {
		body := Wrap(respond("200 OK", textHTML, "a", "b", "c"))(environ(), noStart)
		var got []string
		for chunk := range body {
			got = append(got, string(chunk))
			if len(got) == 2 {
				break
			}
		}
		assert.Equal(t, []string{"a", "b"}, got)
	})
}

func TestMiddleware(t *testing.T) {
	app := wsgi.Chain(respond("200 OK", nil, "x"), Middleware())
	var err error
	for _, e := range app(environ(), noStart) {
		if e != nil {
			err = e
		}
	}
	require.ErrorIs(t, err, ErrViolation)
	var v *Violation
	require.ErrorAs(t, err, &v)
	assert.Contains(t, v.Msg, "Content-Type")
}
