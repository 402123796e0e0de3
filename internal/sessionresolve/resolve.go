// Package sessionresolve implements the Session Resolver (C4): resolving
// a raw cookie value to a Session via the cache (C3) and, on miss, the
// configured session endpoint, per spec.md §4.4.
package sessionresolve

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/authgate/authgate/internal/apperr"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/sessioncache"
)

const (
	defaultTTL = 5 * time.Minute
	minTTL     = time.Second
	maxTTL     = 24 * time.Hour

	connectTimeout = 2 * time.Second
	totalTimeout   = 5 * time.Second
)

// Resolver coordinates C3 and the outbound fetch to the session endpoint
// per §4.4's algorithm.
type Resolver struct {
	cache  sessioncache.Cache
	client *http.Client
	cb     *gobreaker.CircuitBreaker[*http.Response]
}

// New builds a Resolver. cache may be nil to disable caching entirely.
func New(cache sessioncache.Cache) *Resolver {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   totalTimeout,
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "session-endpoint",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", breakerStateName(from)).Str("to", breakerStateName(to)).
				Msg("session endpoint circuit breaker state change")
		},
	})

	return &Resolver{cache: cache, client: client, cb: cb}
}

// Resolve implements §4.4's algorithm: cache lookup, then fetch, then TTL
// computation and cache write on success. The returned error, if any, is
// an *apperr.Error whose Kind is KindUnauthenticated or KindUpstream —
// that distinction is load-bearing for the forward-auth endpoint's status
// mapping and must never be collapsed.
func (r *Resolver) Resolve(ctx context.Context, sessionURL, cookieName, cookieValue string) (model.Session, error) {
	if r.cache != nil {
		if session, ok := r.cache.Get(ctx, cookieValue); ok {
			return session, nil
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, totalTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, sessionURL, nil)
	if err != nil {
		return model.Session{}, apperr.Wrap(apperr.KindUpstream, err, "building session request")
	}
	req.AddCookie(&http.Cookie{Name: cookieName, Value: cookieValue})

	resp, err := r.cb.Execute(func() (*http.Response, error) {
		return r.client.Do(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return model.Session{}, apperr.Wrap(apperr.KindUpstream, err, "session endpoint circuit open")
		}
		return model.Session{}, apperr.Wrap(apperr.KindUpstream, err, "fetching session")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return model.Session{}, apperr.New(apperr.KindUnauthenticated, "session endpoint rejected cookie")
	case resp.StatusCode >= 500:
		return model.Session{}, apperr.New(apperr.KindUpstream, "session endpoint returned server error")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return model.Session{}, apperr.New(apperr.KindUnauthenticated, "session endpoint returned unexpected status")
	}

	var session model.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return model.Session{}, apperr.Wrap(apperr.KindUnauthenticated, err, "malformed session body")
	}

	if r.cache != nil {
		r.cache.Set(ctx, cookieValue, session, ttlFor(cookieValue))
	}
	return session, nil
}

func breakerStateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ttlFor computes the cache TTL per §4.4: derived from the cookie's JWT
// exp claim when present and in the future, clamped to [1s, 24h];
// otherwise the 5-minute default.
func ttlFor(cookieValue string) time.Duration {
	exp, ok := jwtExpiry(cookieValue)
	if !ok {
		return defaultTTL
	}
	ttl := time.Until(exp)
	if ttl <= 0 {
		return defaultTTL
	}
	if ttl < minTTL {
		ttl = minTTL
	}
	if ttl > maxTTL {
		ttl = maxTTL
	}
	return ttl
}

// jwtExpiry decodes cookieValue as an unverified JWT and extracts its exp
// claim. AuthGate does not own the signing key, so no signature
// verification is performed or possible here.
func jwtExpiry(cookieValue string) (time.Time, bool) {
	if strings.Count(cookieValue, ".") != 2 {
		return time.Time{}, false
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(cookieValue, claims); err != nil {
		return time.Time{}, false
	}

	expVal, ok := claims["exp"]
	if !ok {
		return time.Time{}, false
	}
	expFloat, ok := expVal.(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(expFloat), 0), true
}
