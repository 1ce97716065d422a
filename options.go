package wsgi

import (
	"log/slog"
	"net/http"
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger for gateway failures and, unless WithErrorStream
// is used, for what Apps write to wsgi.errors.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithURLScheme fixes wsgi.url_scheme, for gateways behind a TLS-terminating
// proxy. By default the scheme follows r.TLS.
func WithURLScheme(scheme string) Option {
	return func(g *Gateway) { g.scheme = scheme }
}

// WithErrorStream replaces the per-request wsgi.errors stream.
func WithErrorStream(fn func(r *http.Request) ErrorStream) Option {
	return func(g *Gateway) { g.errorStream = fn }
}

// WithRequestID sets the request ID generator. The ID is stored under
// gateway.request_id and returned in the X-Request-ID header. A nil generator
// disables request IDs.
func WithRequestID(gen func() string) Option {
	return func(g *Gateway) { g.requestID = gen }
}

// WithMaxBodyBytes limits the request body readable through wsgi.input.
// Zero means no limit.
func WithMaxBodyBytes(n int64) Option {
	return func(g *Gateway) { g.maxBody = n }
}

// WithAccessLog turns the one-line-per-request access log on or off. It's on
// by default.
func WithAccessLog(enabled bool) Option {
	return func(g *Gateway) { g.accessLog = enabled }
}

