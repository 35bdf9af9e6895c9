package routing

import (
	"errors"
	"strings"
)

type RouteClass string

const (
	RouteClassInternalAPI RouteClass = "internal_api"
	RouteClassOps         RouteClass = "ops"
	RouteClassAttempt     RouteClass = "attempt"
	RouteClassUnknown     RouteClass = "unknown"
)

type Classifier struct {
	entrypoint        string
	allowExact        map[string]RouteClass
	allowPathPatterns []pathPatternRoute
}

type pathPatternRoute struct {
	pattern PathPattern
	rc      RouteClass
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, errors.New("allowlist: missing entrypoint")
	}
	if len(ep.Routes) == 0 {
		return nil, errors.New("allowlist: entrypoint routes empty")
	}

	exact := make(map[string]RouteClass, len(ep.Routes))
	var patterns []pathPatternRoute
	for _, r := range ep.Routes {
		if r.Path == "" || r.RouteClass == "" {
			return nil, errors.New("allowlist: invalid route")
		}
		if p, ok := parsePathPattern(r.Path); ok {
			patterns = append(patterns, pathPatternRoute{pattern: p, rc: RouteClass(r.RouteClass)})
			continue
		}
		exact[r.Path] = RouteClass(r.RouteClass)
	}
	return &Classifier{entrypoint: entrypoint, allowExact: exact, allowPathPatterns: patterns}, nil
}

func (c *Classifier) Classify(path string) RouteClass {
	if rc, ok := c.allowExact[path]; ok {
		return rc
	}
	for _, p := range c.allowPathPatterns {
		if p.pattern.Match(path) {
			return p.rc
		}
	}
	return RouteClassUnknown
}

type PathPattern struct {
	raw      string
	segments []string
}

func parsePathPattern(raw string) (PathPattern, bool) {
	if !strings.Contains(raw, "{") {
		return PathPattern{}, false
	}
	if raw == "" || raw[0] != '/' {
		return PathPattern{}, false
	}

	parts := splitPathSegments(raw)
	for _, s := range parts {
		if s == "" {
			return PathPattern{}, false
		}
		if strings.Contains(s, "{") || strings.Contains(s, "}") {
			if !isParamSegment(s) {
				return PathPattern{}, false
			}
		}
	}
	return PathPattern{raw: raw, segments: parts}, true
}

func (p PathPattern) Match(path string) bool {
	if p.raw == "" {
		return false
	}
	in := splitPathSegments(path)
	if len(in) != len(p.segments) {
		return false
	}
	for i := range p.segments {
		want := p.segments[i]
		got := in[i]
		if got == "" {
			return false
		}
		if isParamSegment(want) {
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

func splitPathSegments(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func isParamSegment(s string) bool {
	return len(s) > 2 && s[0] == '{' && s[len(s)-1] == '}' && !strings.ContainsAny(s[1:len(s)-1], "{}")
}
