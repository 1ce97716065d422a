package wsgi

import (
	"bytes"
	"compress/gzip"
	"strconv"
	"strings"
)

const (
	headerContentEncoding = "Content-Encoding"
	headerContentLength   = "Content-Length"
	headerVary            = "Vary"
)

// Gzip is a middleware that compresses the body of the wrapped App when the
// client sent "Accept-Encoding: gzip".
//
// For example, to gzip everything a router serves:
//
//	gw := wsgi.NewGateway(wsgi.Chain(router.App, wsgi.Gzip))
//
// Each fragment is compressed and flushed on its own, so streaming bodies keep
// streaming. Responses that already carry a Content-Encoding, and 204 and 304
// responses, pass through untouched. Note that this does NOT auto-detect the
// content and disable compression for already-compressed data (e.g. jpg
// images).
func Gzip(next App) App {
	return func(env Environ, start StartResponse) Body {
		if !acceptsGzip(env.Get("HTTP_ACCEPT_ENCODING")) {
			return next(env, start)
		}
		compress := false
		gzStart := func(status string, headers Headers) error {
			_, encoded := headers.Get(headerContentEncoding)
			want := !encoded && !strings.HasPrefix(status, "204") && !strings.HasPrefix(status, "304")
			if want {
				headers = append(headers.Without(headerContentLength),
					Header{headerContentEncoding, "gzip"},
					Header{headerVary, "Accept-Encoding"})
			}
			if err := start(status, headers); err != nil {
				return err
			}
			compress = want
			return nil
		}
		body := next(env, gzStart)
		if body == nil {
			return nil
		}
		return func(yield func([]byte, error) bool) {
			var buf bytes.Buffer
			var zw *gzip.Writer
			for chunk, err := range body {
				if err != nil {
					yield(nil, err)
					return
				}
				if !compress {
					if !yield(chunk, nil) {
						return
					}
					continue
				}
				if zw == nil {
					zw = gzip.NewWriter(&buf)
				}
				if len(chunk) == 0 {
					continue
				}
				zw.Write(chunk)
				zw.Flush()
				if !yield(takeBytes(&buf), nil) {
					return
				}
			}
			if compress {
				if zw == nil {
					zw = gzip.NewWriter(&buf)
				}
				zw.Close()
				yield(takeBytes(&buf), nil)
			}
		}
	}
}

// acceptsGzip reports whether an Accept-Encoding value allows gzip. An
// explicit gzip entry wins over "*", and q=0 refuses the coding.
func acceptsGzip(accept string) bool {
	wildcard := false
	for _, coding := range strings.Split(accept, ",") {
		name, params, _ := strings.Cut(coding, ";")
		name = strings.TrimSpace(name)
		ok := qualityOf(params) > 0
		switch {
		case strings.EqualFold(name, "gzip"), strings.EqualFold(name, "x-gzip"):
			return ok
		case name == "*":
			wildcard = ok
		}
	}
	return wildcard
}

// qualityOf returns the q parameter of a coding, 1 when absent or malformed.
func qualityOf(params string) float64 {
	for _, p := range strings.Split(params, ";") {
		key, val, found := strings.Cut(strings.TrimSpace(p), "=")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 1
		}
		return q
	}
	return 1
}

func takeBytes(buf *bytes.Buffer) []byte {
	out := bytes.Clone(buf.Bytes())
	buf.Reset()
	return out
}
