package wsgi

import (
	"strings"
)

// collect drains body, returning the fragments and the error that ended it.
func collect(body Body) ([]string, error) {
	var out []string
	for chunk, err := range body {
		if err != nil {
			return out, err
		}
		out = append(out, string(chunk))
	}
	return out, nil
}

// say is an App answering 200 with the given fragments.
func say(parts ...string) App {
	return func(env Environ, start StartResponse) Body {
		return func(yield func([]byte, error) bool) {
			if err := start("200 OK", Headers{{"Content-Type", "text/plain"}}); err != nil {
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

// testEnviron is a minimal environ for calling Apps directly.
func testEnviron(method, path, body string) Environ {
	return Environ{
		"REQUEST_METHOD": method,
		"SCRIPT_NAME":    "",
		"PATH_INFO":      path,
		"SERVER_NAME":    "localhost",
		"SERVER_PORT":    "80",
		KeyVersion:       Version,
		KeyURLScheme:     "http",
		KeyMultithread:   true,
		KeyMultiprocess:  false,
		KeyRunOnce:       false,
		KeyInput:         NewInput(strings.NewReader(body), int64(len(body))),
		KeyErrors:        NewWriterStream(&strings.Builder{}),
	}
}

// startRecorder is a StartResponse that remembers what it was given.
type startRecorder struct {
	calls   int
	status  string
	headers Headers
}

func (s *startRecorder) start(status string, headers Headers) error {
	s.calls++
	s.status, s.headers = status, headers
	return nil
}
