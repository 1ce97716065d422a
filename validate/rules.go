package validate

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/augustoroman/wsgi"
)

var requiredKeys = []string{
	"REQUEST_METHOD", "SERVER_NAME", "SERVER_PORT",
	wsgi.KeyVersion, wsgi.KeyInput, wsgi.KeyErrors,
	wsgi.KeyMultithread, wsgi.KeyMultiprocess, wsgi.KeyRunOnce,
	wsgi.KeyURLScheme,
}

// Keys that must hold strings when present.
var cgiKeys = []string{
	"REQUEST_METHOD", "SCRIPT_NAME", "PATH_INFO", "QUERY_STRING",
	"CONTENT_TYPE", "CONTENT_LENGTH", "SERVER_NAME", "SERVER_PORT",
	"SERVER_PROTOCOL", "REMOTE_ADDR",
}

var knownMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true,
	http.MethodOptions: true, http.MethodPatch: true, http.MethodPut: true,
	http.MethodDelete: true, http.MethodTrace: true, http.MethodConnect: true,
}

func (v *validator) checkEnviron(env wsgi.Environ) error {
	if env == nil {
		return violation("environ is nil")
	}
	for _, key := range requiredKeys {
		if _, ok := env[key]; !ok {
			return violation("environ missing required key %q", key)
		}
	}
	for _, key := range []string{"HTTP_CONTENT_TYPE", "HTTP_CONTENT_LENGTH"} {
		if _, ok := env[key]; ok {
			return violation("environ must not contain %q, use %q", key, strings.TrimPrefix(key, "HTTP_"))
		}
	}
	for _, key := range cgiKeys {
		if val, ok := env[key]; ok {
			if _, isStr := val.(string); !isStr {
				return violation("environ[%q] must be a string, got %T", key, val)
			}
		}
	}
	for key, val := range env {
		if strings.HasPrefix(key, "HTTP_") {
			if _, isStr := val.(string); !isStr {
				return violation("environ[%q] must be a string, got %T", key, val)
			}
		}
	}
	if _, ok := env[wsgi.KeyVersion].([2]int); !ok {
		return violation("wsgi.version must be a [2]int, got %T", env[wsgi.KeyVersion])
	}
	if _, err := env.Input(); err != nil {
		return violation("wsgi.input: %v", err)
	}
	if _, err := env.Errors(); err != nil {
		return violation("wsgi.errors: %v", err)
	}
	for _, key := range []string{wsgi.KeyMultithread, wsgi.KeyMultiprocess, wsgi.KeyRunOnce} {
		if _, ok := env[key].(bool); !ok {
			return violation("environ[%q] must be a bool, got %T", key, env[key])
		}
	}
	if scheme := env.Get(wsgi.KeyURLScheme); scheme != "http" && scheme != "https" {
		return violation("wsgi.url_scheme unknown: %q", env[wsgi.KeyURLScheme])
	}
	if method := env.Get("REQUEST_METHOD"); !knownMethods[method] {
		v.log.Warn("unknown REQUEST_METHOD", slog.String("method", method))
	}
	if cl, ok := env["CONTENT_LENGTH"]; ok && cl != "" {
		if n, err := strconv.ParseInt(cl.(string), 10, 64); err != nil || n < 0 {
			return violation("invalid CONTENT_LENGTH: %q", cl)
		}
	}
	script, path := env.Get("SCRIPT_NAME"), env.Get("PATH_INFO")
	if script != "" && !strings.HasPrefix(script, "/") {
		return violation("SCRIPT_NAME doesn't start with /: %q", script)
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		return violation("PATH_INFO doesn't start with /: %q", path)
	}
	if script == "/" {
		return violation("SCRIPT_NAME cannot be \"/\"; it should be \"\" and PATH_INFO \"/\"")
	}
	if script == "" && path == "" {
		v.log.Warn("SCRIPT_NAME and PATH_INFO are both empty")
	}
	return nil
}

func (v *validator) checkStatus(status string) (int, error) {
	if len(status) < 4 {
		if len(status) == 3 {
			if code, err := strconv.Atoi(status); err == nil && code >= 100 {
				v.log.Warn("status line has no reason phrase", slog.String("status", status))
				return code, nil
			}
		}
		return 0, violation("status must be at least 4 characters: %q", status)
	}
	code, err := strconv.Atoi(status[:3])
	if err != nil || status[0] < '0' || status[0] > '9' {
		return 0, violation("status %q should start with a three-digit code", status)
	}
	if code < 100 {
		return 0, violation("status code is invalid: %d", code)
	}
	if status[3] != ' ' {
		return 0, violation("status %q needs a space between the code and the reason", status)
	}
	if strings.TrimSpace(status[4:]) == "" {
		v.log.Warn("status line has no reason phrase", slog.String("status", status))
	}
	return code, nil
}

func checkHeaders(headers wsgi.Headers) error {
	for _, h := range headers {
		name := h.Name
		if strings.EqualFold(name, "status") {
			return violation("the Status header cannot be used; it conflicts with CGI")
		}
		if name == "" {
			return violation("header with an empty name")
		}
		for _, c := range name {
			if !isTokenChar(c) {
				return violation("header name %q contains the invalid character %q", name, c)
			}
		}
		if strings.HasSuffix(name, "-") || strings.HasSuffix(name, "_") {
			return violation("header name %q may not end in '-' or '_'", name)
		}
		for _, c := range h.Value {
			if c < 0x20 && c != '\t' || c == 0x7f {
				return violation("header %q has a bad control character %q in its value", name, c)
			}
		}
	}
	return nil
}

func checkContentType(code int, headers wsgi.Headers) error {
	_, has := headers.Get("Content-Type")
	bodiless := code == http.StatusNoContent || code == http.StatusNotModified
	switch {
	case bodiless && has:
		return violation("Content-Type header found in a %d response, which must not return content", code)
	case !bodiless && !has:
		return violation("no Content-Type header found in headers")
	}
	return nil
}

// isTokenChar reports whether c may appear in an HTTP header name (RFC 7230
// tchar).
func isTokenChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.ContainsRune("!#$%&'*+-.^_`|~", c)
}
