// Package martini_wsgi is a martini-adapter for wsgi that provides the
// martini request parameters to the application under wsgiorg.routing_args.
package martini_wsgi

import (
	"net/http"

	"github.com/augustoroman/wsgi"
	"github.com/go-martini/martini"
)

// Handler returns a martini handler serving app through gw.
//
//	m := martini.Classic()
//	m.Get("/say/:greeting/:name", martini_wsgi.Handler(gw, greet))
func Handler(gw *wsgi.Gateway, app wsgi.App) martini.Handler {
	return func(w http.ResponseWriter, r *http.Request, p martini.Params) {
		gw.ServeApp(w, r, app, RoutingArgs(p))
	}
}

// RoutingArgs converts martini params into environ entries. Martini params
// are unordered, so there are no positional arguments.
func RoutingArgs(p martini.Params) wsgi.Environ {
	named := make(wsgi.Params, len(p))
	for k, v := range p {
		named[k] = v
	}
	return wsgi.Environ{wsgi.KeyRoutingArgs: wsgi.RoutingArgs{Named: named}}
}
