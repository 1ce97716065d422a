// Package httprouter_wsgi is a httprouter-adapter for wsgi that provides the
// httprouter path parameters to the application under wsgiorg.routing_args.
package httprouter_wsgi

import (
	"net/http"

	"github.com/augustoroman/wsgi"
	"github.com/julienschmidt/httprouter"
)

// H returns an httprouter.Handle that serves app through gw's machinery. The
// gateway's own App is not used.
//
//	gw := wsgi.NewGateway(nil)
//	r := httprouter.New()
//	r.GET("/say/:greeting/:name", httprouter_wsgi.H(gw, greet))
func H(gw *wsgi.Gateway, app wsgi.App) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		gw.ServeApp(w, r, app, RoutingArgs(p))
	}
}

// Handle is H using a Gateway with default options.
func Handle(app wsgi.App) httprouter.Handle {
	return H(wsgi.NewGateway(app), app)
}

// RoutingArgs converts httprouter params into environ entries. Positional
// arguments keep the order of the route's parameters.
func RoutingArgs(p httprouter.Params) wsgi.Environ {
	args := wsgi.RoutingArgs{
		Positional: make([]string, 0, len(p)),
		Named:      make(wsgi.Params, len(p)),
	}
	for _, param := range p {
		args.Positional = append(args.Positional, param.Value)
		args.Named[param.Key] = param.Value
	}
	return wsgi.Environ{wsgi.KeyRoutingArgs: args}
}
