package gateway

import (
	"net/http"
	"strings"
)

// Handler is a gateway route handler. The request context carries the
// resolved credential, organization, path parameters and quota decision.
type Handler func(w http.ResponseWriter, r *http.Request, rc *RequestContext)

type segmentKind int

const (
	segLiteral segmentKind = iota
	segParam
	segWildcard
)

type segment struct {
	kind segmentKind
	// literal text or parameter name
	value string
}

type route struct {
	method   string
	pattern  string
	segments []segment
	handler  Handler
}

// Router is an ordered table of compiled route patterns. Patterns are
// parsed once at registration:
//
//	/api/devices          exact
//	/api/devices/:id      parameterized
//	/api/files/raw/*      wildcard (matches everything under the prefix)
//
// Exact matches always win. Wildcard and parameterized patterns are tried
// in registration order, first match wins.
type Router struct {
	exact   map[string]Handler
	ordered []*route
}

func NewRouter() *Router {
	return &Router{exact: make(map[string]Handler)}
}

func (rt *Router) Handle(method, pattern string, handler Handler) {
	if !strings.ContainsAny(pattern, ":*") {
		rt.exact[method+" "+pattern] = handler
		return
	}

	parts := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	segments := make([]segment, 0, len(parts))
	for _, part := range parts {
		switch {
		case part == "*":
			segments = append(segments, segment{kind: segWildcard})
		case strings.HasPrefix(part, ":"):
			segments = append(segments, segment{kind: segParam, value: part[1:]})
		default:
			segments = append(segments, segment{kind: segLiteral, value: part})
		}
	}

	rt.ordered = append(rt.ordered, &route{
		method:   method,
		pattern:  pattern,
		segments: segments,
		handler:  handler,
	})
}

// Lookup resolves a normalized path to a handler and its extracted path
// parameters. The boolean is false when no registered pattern matches.
func (rt *Router) Lookup(method, path string) (Handler, map[string]string, bool) {
	if h, ok := rt.exact[method+" "+path]; ok {
		return h, nil, true
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for _, r := range rt.ordered {
		if r.method != method {
			continue
		}
		if params, ok := matchSegments(r.segments, parts); ok {
			return r.handler, params, true
		}
	}
	return nil, nil, false
}

func matchSegments(segments []segment, parts []string) (map[string]string, bool) {
	var params map[string]string

	for i, seg := range segments {
		if seg.kind == segWildcard {
			// wildcard swallows the remainder, including empty
			if params == nil {
				params = make(map[string]string)
			}
			params["*"] = strings.Join(parts[i:], "/")
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		switch seg.kind {
		case segLiteral:
			if parts[i] != seg.value {
				return nil, false
			}
		case segParam:
			if parts[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[seg.value] = parts[i]
		}
	}

	if len(parts) != len(segments) {
		return nil, false
	}
	return params, true
}
