package wsgi

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
)

// Params holds the named path parameters matched by a Router.
type Params map[string]string

// RoutingArgs is the value stored under wsgiorg.routing_args: positional and
// named arguments extracted from the URL.
type RoutingArgs struct {
	Positional []string
	Named      Params
}

func (a RoutingArgs) String() string {
	return fmt.Sprintf("(%q, %v)", a.Positional, map[string]string(a.Named))
}

// RouteParams returns the named routing arguments in env, never nil.
func RouteParams(env Environ) Params {
	if args, ok := env[KeyRoutingArgs].(RoutingArgs); ok && args.Named != nil {
		return args.Named
	}
	return Params{}
}

// WithRouteParams returns a copy of env whose routing arguments include p.
// Existing named arguments are kept unless p overrides them.
func WithRouteParams(env Environ, p Params) Environ {
	env = env.Clone()
	args, _ := env[KeyRoutingArgs].(RoutingArgs)
	named := Params{}
	maps.Copy(named, args.Named)
	maps.Copy(named, p)
	env[KeyRoutingArgs] = RoutingArgs{Positional: args.Positional, Named: named}
	return env
}

// Router dispatches on REQUEST_METHOD and PATH_INFO to the App registered for
// a PAT-style pattern. Patterns are made of static segments, named ":param"
// segments matching one segment, and at most one greedy ":param*" segment
// matching one or more. A leading "::" escapes a literal colon.
//
// Priority: static segments, then explicit parameters, then greedy ones.
// Handlers registered for a specific method take precedence over Any.
//
// Router is not safe for registering routes concurrently with serving.
type Router struct {
	use       []Middleware
	mounts    map[string]*Router
	byMethod  map[string]*routeTree
	anyMethod *routeTree

	// NotFound answers requests no route matches. It defaults to a plain 404.
	NotFound App
}

// NewRouter returns an empty Router.
func NewRouter() *Router { return &Router{} }

// Use adds middleware applied to every route registered afterwards, including
// routes on routers mounted afterwards. Routes already registered are not
// affected.
func (r *Router) Use(mws ...Middleware) {
	r.use = append(r.use[:len(r.use):len(r.use)], mws...)
}

// On registers app for method and pattern, wrapped in the router's
// middleware followed by mws. It panics on a bad or conflicting pattern, since
// that's a programming error found at startup.
func (r *Router) On(method, pattern string, app App, mws ...Middleware) {
	method = strings.ToUpper(method)
	all := append(r.use[:len(r.use):len(r.use)], mws...)
	if err := r.treeFor(method).Register(pattern, Chain(app, all...)); err != nil {
		panic(fmt.Errorf("Cannot register route: %v", err))
	}
}

func (r *Router) Get(pattern string, app App, mws ...Middleware) {
	r.On(http.MethodGet, pattern, app, mws...)
}
func (r *Router) Put(pattern string, app App, mws ...Middleware) {
	r.On(http.MethodPut, pattern, app, mws...)
}
func (r *Router) Post(pattern string, app App, mws ...Middleware) {
	r.On(http.MethodPost, pattern, app, mws...)
}
func (r *Router) Patch(pattern string, app App, mws ...Middleware) {
	r.On(http.MethodPatch, pattern, app, mws...)
}
func (r *Router) Delete(pattern string, app App, mws ...Middleware) {
	r.On(http.MethodDelete, pattern, app, mws...)
}

// Any registers app for every method without a dedicated registration on
// pattern. Any is a shortcut for `On("*", ...)`.
func (r *Router) Any(pattern string, app App, mws ...Middleware) { r.On("*", pattern, app, mws...) }

// Mount derives a router for every path under prefix. Apps served by it see
// the prefix moved from PATH_INFO onto SCRIPT_NAME, so they can be written
// without knowing where they're mounted.
func (r *Router) Mount(prefix string) *Router {
	if r.mounts == nil {
		r.mounts = map[string]*Router{}
	}
	prefix = "/" + strings.Trim(prefix, "/") + "/"
	for existing := range r.mounts {
		if strings.HasPrefix(existing, prefix) || strings.HasPrefix(prefix, existing) {
			panic(fmt.Sprintf(
				"Mount with prefix %#q conflicts with existing mount with prefix %#q",
				prefix, existing,
			))
		}
	}
	sub := &Router{
		use:      r.use[:len(r.use):len(r.use)],
		NotFound: r.NotFound,
	}
	r.mounts[prefix] = sub
	return sub
}

// App dispatches a request. Use the method value r.App wherever an App is
// expected.
func (r *Router) App(env Environ, start StartResponse) Body {
	path := env.Get("PATH_INFO")
	if path == "" {
		path = "/"
	}
	app, env := r.route(env, env.Get("REQUEST_METHOD"), path)
	return app(env, start)
}

func (r *Router) route(env Environ, method, path string) (App, Environ) {
	method = strings.ToUpper(method)
	for prefix, sub := range r.mounts {
		if strings.HasPrefix(path+"/", prefix) {
			shifted := env.Clone()
			mount := strings.TrimSuffix(prefix, "/")
			shifted["SCRIPT_NAME"] = strings.TrimSuffix(env.Get("SCRIPT_NAME"), "/") + mount
			rest := strings.TrimPrefix(path, mount)
			if rest == "" {
				rest = "/"
			}
			shifted["PATH_INFO"] = rest
			return sub.route(shifted, method, rest)
		}
	}
	params := Params{}
	if app := r.byMethod[method].Match(path, params); app != nil {
		return app, WithRouteParams(env, params)
	}
	if app := r.anyMethod.Match(path, params); app != nil {
		return app, WithRouteParams(env, params)
	}
	if r.NotFound != nil {
		return r.NotFound, env
	}
	return NotFound, env
}

func (r *Router) treeFor(method string) *routeTree {
	if method == "*" {
		if r.anyMethod == nil {
			r.anyMethod = &routeTree{}
		}
		return r.anyMethod
	}
	if r.byMethod == nil {
		r.byMethod = map[string]*routeTree{}
	}
	t := r.byMethod[method]
	if t == nil {
		t = &routeTree{}
		r.byMethod[method] = t
	}
	return t
}

// NotFound answers every request with a plain-text 404.
func NotFound(env Environ, start StartResponse) Body {
	return func(yield func([]byte, error) bool) {
		if err := start("404 Not Found", Headers{{"Content-Type", "text/plain; charset=utf-8"}}); err != nil {
			yield(nil, err)
			return
		}
		yield([]byte("Not found\n"), nil)
	}
}

// routeTree is one level of the pattern tree: static children by segment,
// parameter children in registration order, and the App registered for the
// path ending here.
type routeTree struct {
	static map[string]*routeTree
	params []paramEdge
	app    App
}

type paramEdge struct {
	name   string
	greedy bool
	next   *routeTree
}

func (t *routeTree) Register(pattern string, app App) error {
	if !strings.HasPrefix(pattern, "/") {
		return errors.New("patterns must begin with /")
	}
	reg := registration{seen: map[string]bool{}}
	if err := reg.add(t, strings.Split(pattern[1:], "/"), app); err != nil {
		return fmt.Errorf("%#q: bad pattern: %w", pattern, err)
	}
	return nil
}

type registration struct {
	seen       map[string]bool
	seenGreedy bool
}

func (reg *registration) add(t *routeTree, segments []string, app App) error {
	if len(segments) == 0 {
		if t.app != nil {
			return fmt.Errorf("repeated entry")
		}
		t.app = app
		return nil
	}
	seg, rest := segments[0], segments[1:]
	static, isStatic, name, greedy := parseSegment(seg)
	if isStatic {
		return reg.addStatic(t, static, rest, app)
	}
	return reg.addParam(t, name, greedy, rest, app)
}

func (reg *registration) addStatic(t *routeTree, seg string, rest []string, app App) error {
	child := t.static[seg]
	if child == nil {
		child = &routeTree{}
	}
	if err := reg.add(child, rest, app); err != nil {
		return err
	}
	if t.static == nil {
		t.static = map[string]*routeTree{}
	}
	t.static[seg] = child
	return nil
}

func (reg *registration) addParam(t *routeTree, name string, greedy bool, rest []string, app App) error {
	if greedy && reg.seenGreedy {
		return fmt.Errorf("only one greedy param allowed per pattern: %#q", name)
	} else if reg.seen[name] {
		return fmt.Errorf("param used twice: %#q", name)
	}
	for _, p := range t.params {
		if p.name == name {
			if p.greedy != greedy {
				return fmt.Errorf("param %#q is sometimes greedy and sometimes not", name)
			}
			reg.seen[name] = true
			reg.seenGreedy = reg.seenGreedy || greedy
			return reg.add(p.next, rest, app)
		}
		// A different param at this level must not lead to the same routes:
		// /x/:a/y and /x/:b/y can't both exist.
		if err := p.next.ambiguous(rest); err != nil {
			return fmt.Errorf("ambiguous route: %w", err)
		}
	}
	child := &routeTree{}
	reg.seen[name] = true
	reg.seenGreedy = reg.seenGreedy || greedy
	if err := reg.add(child, rest, app); err != nil {
		return err
	}
	t.params = append(t.params, paramEdge{name: name, greedy: greedy, next: child})
	return nil
}

func (t *routeTree) ambiguous(segments []string) error {
	if len(segments) == 0 {
		if t.app != nil {
			return fmt.Errorf("ambiguous route")
		}
		return nil
	}
	static, isStatic, _, _ := parseSegment(segments[0])
	if isStatic {
		if child := t.static[static]; child != nil {
			return child.ambiguous(segments[1:])
		}
		return nil
	}
	for _, p := range t.params {
		if err := p.next.ambiguous(segments[1:]); err != nil {
			return err
		}
	}
	return nil
}

func parseSegment(seg string) (static string, isStatic bool, name string, greedy bool) {
	switch {
	case strings.HasPrefix(seg, "::"):
		return seg[1:], true, "", false
	case !strings.HasPrefix(seg, ":"):
		return seg, true, "", false
	}
	return "", false, strings.TrimSuffix(seg[1:], "*"), strings.HasSuffix(seg, "*")
}

// Match returns the App registered for path, filling params, or nil.
func (t *routeTree) Match(path string, params Params) App {
	if t == nil {
		return nil
	}
	return t.matchPrefix(strings.Split(strings.TrimPrefix(path, "/"), "/"), params)
}

func (t *routeTree) matchPrefix(segments []string, params Params) App {
	if t == nil {
		return nil
	}
	if len(segments) == 0 {
		return t.app
	}
	seg, rest := segments[0], segments[1:]
	if child := t.static[seg]; child != nil {
		if app := child.matchPrefix(rest, params); app != nil {
			return app
		}
	}
	for _, p := range t.params {
		if !p.greedy {
			if app := p.next.matchPrefix(rest, params); app != nil {
				params[p.name] = seg
				return app
			}
			continue
		}
		if app, used := p.next.matchSuffix(rest, params); app != nil {
			params[p.name] = strings.Join(segments[:len(segments)-used], "/")
			return app
		}
	}
	return nil
}

// matchSuffix matches the tail of segments against t, reporting how many
// segments the match consumed so a greedy parameter can take the rest.
func (t *routeTree) matchSuffix(segments []string, params Params) (App, int) {
	n := len(segments)
	if n == 0 {
		return t.app, 0
	}
	for seg, child := range t.static {
		app, d := child.matchSuffix(segments, params)
		if app == nil || d+1 > n || segments[n-d-1] != seg {
			continue
		}
		return app, d + 1
	}
	for _, p := range t.params {
		app, d := p.next.matchSuffix(segments, params)
		if app == nil || d+1 > n {
			continue
		}
		params[p.name] = segments[n-d-1]
		return app, d + 1
	}
	return t.app, 0
}
