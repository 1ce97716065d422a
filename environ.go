package wsgi

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ErrBadHost is returned by NewEnviron when the request's Host can't be split
// into a server name and port.
var ErrBadHost = errors.New("cannot determine server name and port")

// NewEnviron builds the environ for r: the CGI variables, an HTTP_* entry
// for every request header, and the reserved wsgi.* entries. wsgi.input reads
// r.Body; wsgi.errors is left for the caller to set.
func NewEnviron(r *http.Request, scheme string) (Environ, error) {
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	name, port, err := serverNameAndPort(r, scheme)
	if err != nil {
		return nil, err
	}

	env := Environ{
		"REQUEST_METHOD":  r.Method,
		"SCRIPT_NAME":     "",
		"PATH_INFO":       r.URL.Path,
		"QUERY_STRING":    r.URL.RawQuery,
		"SERVER_NAME":     name,
		"SERVER_PORT":     port,
		"SERVER_PROTOCOL": r.Proto,
		"REMOTE_ADDR":     remoteHost(r.RemoteAddr),

		KeyVersion:      Version,
		KeyURLScheme:    scheme,
		KeyMultithread:  true,
		KeyMultiprocess: false,
		KeyRunOnce:      false,
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		env["CONTENT_TYPE"] = ct
	}
	length := r.ContentLength
	if length >= 0 {
		env["CONTENT_LENGTH"] = strconv.FormatInt(length, 10)
	}
	for k, vals := range r.Header {
		key := strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		if key == "CONTENT_TYPE" || key == "CONTENT_LENGTH" {
			continue
		}
		env["HTTP_"+key] = strings.Join(vals, ",")
	}
	if _, ok := env["HTTP_HOST"]; !ok && r.Host != "" {
		env["HTTP_HOST"] = r.Host
	}
	env[KeyInput] = NewInput(r.Body, length)
	return env, nil
}

func serverNameAndPort(r *http.Request, scheme string) (string, string, error) {
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	if host == "" {
		host = "localhost"
	}
	name, port, err := net.SplitHostPort(host)
	if err != nil {
		if strings.Count(host, ":") > 1 && !strings.HasPrefix(host, "[") {
			return "", "", ErrBadHost
		}
		name, port = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]"), ""
	}
	if port == "" {
		switch scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	} else if _, err := strconv.Atoi(port); err != nil {
		return "", "", ErrBadHost
	}
	return strings.ToLower(name), port, nil
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
