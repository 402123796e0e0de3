// Package routematch selects the most-specific configured route for an
// incoming (host, path) pair.
package routematch

import (
	"strings"

	"github.com/authgate/authgate/internal/model"
)

// Match selects the most-specific route in routes matching host and path,
// or reports no match. Host comparison is case-insensitive; path
// comparison is case-sensitive. routes must be in catalogue order: ties
// not broken by host/path specificity fall back to first-registered-wins.
//
// Specificity: the route with the longest literal (non-wildcard) path
// prefix wins; ties are broken by preferring an exact host pattern over a
// wildcard host pattern; remaining ties keep the earlier catalogue entry.
func Match(host, path string, routes []model.RouteDef) (model.RouteDef, bool) {
	host = strings.ToLower(host)

	var (
		best      model.RouteDef
		bestFound bool
		bestLen   = -1
		bestExact = false
	)

	for _, r := range routes {
		if !matchHost(host, strings.ToLower(r.Host)) {
			continue
		}
		if !matchPath(path, r.Path) {
			continue
		}

		literalLen := literalPrefixLen(r.Path)
		exactHost := !isWildcardHost(r.Host)

		switch {
		case !bestFound:
			best, bestFound, bestLen, bestExact = r, true, literalLen, exactHost
		case literalLen > bestLen:
			best, bestLen, bestExact = r, literalLen, exactHost
		case literalLen == bestLen && exactHost && !bestExact:
			best, bestExact = r, exactHost
		}
	}

	return best, bestFound
}

func isWildcardHost(pattern string) bool {
	return strings.HasPrefix(pattern, "*.")
}

// matchHost reports whether requestHost satisfies pattern. pattern is
// either an exact hostname or a left-wildcard "*.suffix" matching any
// non-empty label prepended to suffix.
func matchHost(requestHost, pattern string) bool {
	if requestHost == pattern {
		return true
	}
	if !isWildcardHost(pattern) {
		return false
	}
	suffix := pattern[2:] // strip "*."
	if len(requestHost) <= len(suffix) || !strings.HasSuffix(requestHost, suffix) {
		return false
	}
	prefix := requestHost[:len(requestHost)-len(suffix)]
	return len(prefix) > 1 && strings.HasSuffix(prefix, ".")
}

// matchPath reports whether requestPath satisfies pattern. pattern is
// either an exact path or a trailing-wildcard "/prefix/*" matching any
// path beginning with "/prefix/" or equal to "/prefix".
func matchPath(requestPath, pattern string) bool {
	if requestPath == pattern {
		return true
	}
	if !strings.HasSuffix(pattern, "*") {
		return false
	}
	prefix := strings.TrimSuffix(pattern, "*")
	if requestPath == strings.TrimSuffix(prefix, "/") {
		return true
	}
	return strings.HasPrefix(requestPath, prefix)
}

// literalPrefixLen returns the length of pattern's non-wildcard literal
// prefix, the primary specificity signal.
func literalPrefixLen(pattern string) int {
	return len(strings.TrimSuffix(pattern, "*"))
}
