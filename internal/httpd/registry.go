package httpd

import (
	"sort"
	"strings"
)

// ParamCategory tells where an endpoint parameter is transported.
type ParamCategory int

const (
	ParamPath ParamCategory = iota
	ParamQuery
	ParamForm
	ParamAny
)

// ParamSpec describes one declared endpoint parameter.
type ParamSpec struct {
	Category    ParamCategory
	Optional    bool
	Description string
}

// AuthType selects the access check performed before an endpoint handler
// runs.
type AuthType int

const (
	AuthNone AuthType = iota
	// AuthToken requires a valid session token in the query string, form
	// body or Authorization: Bearer header.
	AuthToken
	// AuthBasic requires HTTP basic credentials and answers failures with
	// a WWW-Authenticate challenge.
	AuthBasic
)

// HandlerFunc produces a response for a fully parsed and validated request.
type HandlerFunc func(*Request) *Response

// Endpoint binds a route and method to a handler together with its declared
// parameters and access requirements.
type Endpoint struct {
	Path        string
	Method      Method
	ContentType ContentType
	Params      map[string]ParamSpec
	Auth        AuthType
	Description string
	Handler     HandlerFunc
}

type endpointKey struct {
	path   string
	method Method
}

// Registry holds all registered endpoints keyed by lowercased route and
// method.
type Registry struct {
	endpoints map[endpointKey]*Endpoint
}

func NewRegistry() *Registry {
	return &Registry{endpoints: map[endpointKey]*Endpoint{}}
}

// Register adds an endpoint. A later registration for the same route and
// method replaces the earlier one.
func (r *Registry) Register(ep Endpoint) {
	key := endpointKey{path: strings.ToLower(ep.Path), method: ep.Method}
	r.endpoints[key] = &ep
}

// Resolve finds the endpoint for a route and method, case-insensitively on
// the route. It returns nil when nothing is registered.
func (r *Registry) Resolve(path string, method Method) *Endpoint {
	return r.endpoints[endpointKey{path: strings.ToLower(path), method: method}]
}

// List returns all endpoints sorted by route then method, for the help
// pages.
func (r *Registry) List() []*Endpoint {
	out := make([]*Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// ByPath returns every endpoint registered under a route, regardless of
// method.
func (r *Registry) ByPath(path string) []*Endpoint {
	var out []*Endpoint
	lower := strings.ToLower(path)
	for key, ep := range r.endpoints {
		if key.path == lower {
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

// Validate checks a request against the endpoint's declared parameters. It
// reports the first missing required parameter, or a path parameter count
// mismatch, as an ArgumentError.
func (ep *Endpoint) Validate(req *Request) error {
	pathRequired := 0
	names := make([]string, 0, len(ep.Params))
	for name := range ep.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := ep.Params[name]
		if spec.Category == ParamPath {
			if !spec.Optional {
				pathRequired++
			}
			continue
		}
		if spec.Optional {
			continue
		}
		if !req.HasParam(name, spec.Category) {
			return Argumentf("parameter %s is missing", name)
		}
	}

	if len(req.PathSegments) < pathRequired {
		return Argumentf("the request does not contain enough path parameters")
	}
	return nil
}

// HasParam reports whether a request carries a named parameter in the given
// category.
func (req *Request) HasParam(name string, category ParamCategory) bool {
	inQuery := func() bool { _, ok := req.QueryParams[name]; return ok }
	inForm := func() bool {
		if _, ok := req.FormParams[name]; ok {
			return true
		}
		_, ok := req.FormFields[name]
		return ok
	}
	switch category {
	case ParamQuery:
		return inQuery()
	case ParamForm:
		return inForm()
	case ParamAny:
		return inQuery() || inForm()
	}
	return false
}

// Param fetches a named parameter, preferring query over form values.
func (req *Request) Param(name string) string {
	if v, ok := req.QueryParams[name]; ok {
		return v
	}
	if v, ok := req.FormParams[name]; ok {
		return v
	}
	return req.FormFields[name]
}
