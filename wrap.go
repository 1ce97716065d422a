package wsgi

// Middleware decorates an App. The conformance validator, Gzip and the
// gateway's own bookkeeping are all middleware.
type Middleware func(App) App

// Chain wraps app with the given middleware. The first middleware listed is
// the outermost: it sees the environ first and the body fragments last.
//
// For example:
//
//	app := wsgi.Chain(echo.App, validate.Middleware(), wsgi.Gzip)
//
// validates the combination of Gzip and echo.App.
func Chain(app App, mws ...Middleware) App {
	for i := len(mws) - 1; i >= 0; i-- {
		app = mws[i](app)
	}
	return app
}

// Wrap provides a mechanism to add two hooks around an App: Before runs when
// the App is called, before any of its work, and After runs once its body has
// been consumed, stopped or has failed. After receives the error that ended
// the body, if any.
//
// This is generally useful for specifying operations that need to run before
// and after the application, such as timing or allocation/cleanup.
type Wrap struct {
	Before func(env Environ)
	After  func(env Environ, err error)
}

// Apply makes Wrap usable as a Middleware.
func (w Wrap) Apply(next App) App {
	return func(env Environ, start StartResponse) Body {
		if w.Before != nil {
			w.Before(env)
		}
		body := next(env, start)
		if body == nil {
			if w.After != nil {
				w.After(env, nil)
			}
			return nil
		}
		return func(yield func([]byte, error) bool) {
			var failed error
			if w.After != nil {
				defer func() { w.After(env, failed) }()
			}
			for chunk, err := range body {
				if err != nil {
					failed = err
				}
				if !yield(chunk, err) || err != nil {
					return
				}
			}
		}
	}
}
