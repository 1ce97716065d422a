// Package wsgi is a gateway calling convention for Go: applications receive
// a request environ and a start-response callback and return a lazy body of
// byte fragments, and a Gateway hosts them on net/http.
//
// The convention lets application code stay independent of the server that
// runs it:
//   - The request is a plain map (Environ) of CGI variables plus reserved
//     wsgi.* entries, including the body stream (wsgi.input) and an error
//     stream (wsgi.errors).
//   - Status and headers are declared once through StartResponse.
//   - The body is an iterator, so a response is produced one fragment at a
//     time, only as fast as the gateway pulls it.
//   - Middleware is just a function from App to App.
//
// # Example
//
// Here's a simple complete program:
//
//	package main
//
//	import (
//	    "log"
//	    "net/http"
//
//	    "github.com/augustoroman/wsgi"
//	)
//
//	func hello(env wsgi.Environ, start wsgi.StartResponse) wsgi.Body {
//	    return func(yield func([]byte, error) bool) {
//	        if err := start("200 OK", wsgi.Headers{{"Content-Type", "text/plain"}}); err != nil {
//	            yield(nil, err)
//	            return
//	        }
//	        yield([]byte("Hello world!"), nil)
//	    }
//	}
//
//	func main() {
//	    if err := http.ListenAndServe(":6060", wsgi.NewGateway(hello)); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Bodies
//
// A Body is an iter.Seq2[[]byte, error]. Nothing in it runs until the gateway
// starts pulling, and if the gateway stops pulling (because the client went
// away) the rest of it never runs. Return an error as the second value to end
// the response; the gateway sends a 500 if no fragment went out yet, and
// otherwise cuts the response short and logs the error.
//
// Headers are held back until the first non-empty fragment, so an App may
// call StartResponse from inside its Body, right before the first yield.
//
// # Reading the request
//
// wsgi.input supports reading line by line and reading everything that's
// left, over one cursor:
//
//	in, err := env.Input()
//	for line, err := range in.Lines() { ... }
//	rest, err := in.ReadAll() // empty if Lines ran to the end
//
// # Validating
//
// The validate subpackage wraps an App and checks both sides of the
// convention: the environ it's given, its use of StartResponse, and how its
// body is consumed. It's meant for development and tests:
//
//	gw := wsgi.NewGateway(validate.Wrap(myApp))
//
// # Routing
//
// Router dispatches on REQUEST_METHOD and PATH_INFO with PAT-style patterns
// and stores the matched parameters under wsgiorg.routing_args. The
// httprouter_wsgi and martini_wsgi packages do the same for apps mounted on
// those routers. ServeFS serves static files named by a route parameter:
//
//	r.Any("/static/:path*", wsgi.ServeFS(assets, "public", "path"))
package wsgi
