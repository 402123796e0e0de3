// Package forwardauth implements the Forward-Auth Endpoint (C6): the
// single route a reverse proxy sub-requests per incoming request to
// obtain an allow/deny decision, per spec.md §4.5.
package forwardauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/authgate/authgate/internal/apperr"
	"github.com/authgate/authgate/internal/authz"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/routematch"
)

// Resolver is the subset of the Session Resolver (C4) the handler needs.
type Resolver interface {
	Resolve(ctx context.Context, sessionURL, cookieName, cookieValue string) (model.Session, error)
}

// Handler implements the decision table in §4.5.
type Handler struct {
	ConfigProvider config.Provider
	Resolver       Resolver
	AuditLogger    *authz.AuditLogger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	cfg, err := h.ConfigProvider.Current(ctx)
	if err != nil {
		logging.CtxErr(ctx, err).Msg("forward-auth: config unavailable")
		http.Error(w, "configuration unavailable", http.StatusBadGateway)
		return
	}

	host := requestHost(r)
	path := requestPath(r)

	route, matched := routematch.Match(host, path, cfg.Routes)
	if !matched {
		w.WriteHeader(http.StatusOK)
		return
	}

	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "session"
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		h.redirectToLogin(w, r, cfg)
		return
	}

	session, err := h.Resolver.Resolve(ctx, cfg.SessionURL, cookieName, cookie.Value)
	if err != nil {
		switch {
		case apperr.Is(err, apperr.KindUnauthenticated):
			h.redirectToLogin(w, r, cfg)
		case apperr.Is(err, apperr.KindUpstream):
			logging.CtxErr(ctx, err).Msg("forward-auth: session endpoint unreachable")
			http.Error(w, "upstream session service unavailable", http.StatusBadGateway)
		default:
			logging.CtxErr(ctx, err).Msg("forward-auth: unexpected session resolution error")
			http.Error(w, "internal error", http.StatusBadGateway)
		}
		h.audit(ctx, route, "", "upstream_error", "", start, false)
		return
	}

	evalStart := time.Now()
	allow, reason := authz.Evaluate(session, route.Require)
	authz.RecordDecision(route.Host, route.Path, decisionLabel(allow), reasonLabel(reason), time.Since(evalStart))

	if !allow {
		w.Header().Set("X-Auth-Deny-Reason", reason.String())
		w.WriteHeader(http.StatusForbidden)
		h.audit(ctx, route, session.User.ID, "deny", reason.String(), start, false)
		return
	}

	setIdentityHeaders(w, session.User)
	w.WriteHeader(http.StatusOK)
	h.audit(ctx, route, session.User.ID, "allow", "", start, false)
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request, cfg model.AuthConfig) {
	original := url.URL{
		Scheme:   requestProto(r),
		Host:     requestHost(r),
		Path:     requestPath(r),
		RawQuery: requestQuery(r),
	}

	redirectURL, err := url.Parse(cfg.LoginRedirect)
	if err != nil {
		http.Error(w, "invalid login redirect configuration", http.StatusBadGateway)
		return
	}
	q := redirectURL.Query()
	q.Set("redirect", original.String())
	redirectURL.RawQuery = q.Encode()

	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

func (h *Handler) audit(ctx context.Context, route model.RouteDef, userID, decision, reason string, start time.Time, cacheHit bool) {
	if h.AuditLogger == nil {
		return
	}
	h.AuditLogger.LogDecision(ctx, &authz.AuditEvent{
		UserID:    userID,
		RouteHost: route.Host,
		RoutePath: route.Path,
		Decision:  decision,
		Reason:    reason,
		Duration:  time.Since(start),
		CacheHit:  cacheHit,
	})
}

func decisionLabel(allow bool) string {
	if allow {
		return "allow"
	}
	return "deny"
}

func reasonLabel(reason *model.DenyReason) string {
	if reason == nil {
		return ""
	}
	return string(reason.Kind)
}

// requestHost returns X-Forwarded-Host, falling back to Host (§4.5
// "Fallbacks").
func requestHost(r *http.Request) string {
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		return h
	}
	return r.Host
}

// requestPath returns the path component only (query stripped) from
// X-Forwarded-Uri or X-Forwarded-Path, falling back to the request's own
// URL path.
func requestPath(r *http.Request) string {
	raw := r.Header.Get("X-Forwarded-Uri")
	if raw == "" {
		raw = r.Header.Get("X-Forwarded-Path")
	}
	if raw == "" {
		return r.URL.Path
	}
	if u, err := url.Parse(raw); err == nil {
		return u.Path
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func requestQuery(r *http.Request) string {
	raw := r.Header.Get("X-Forwarded-Uri")
	if raw == "" {
		raw = r.Header.Get("X-Forwarded-Path")
	}
	if raw == "" {
		return r.URL.RawQuery
	}
	if u, err := url.Parse(raw); err == nil {
		return u.RawQuery
	}
	return ""
}

func requestProto(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return p
	}
	return "http"
}

// setIdentityHeaders sets the four identity headers on allow, per §4.5.
// Each single value, and each element of a comma-joined list, is
// URL-encoded on its own when it contains a comma or a non-token
// character, so the proxy can forward them verbatim without ambiguity.
func setIdentityHeaders(w http.ResponseWriter, user model.User) {
	w.Header().Set("X-Auth-User-Id", encodeHeaderValue(user.ID))
	w.Header().Set("X-Auth-User-Email", encodeHeaderValue(user.Email))
	w.Header().Set("X-Auth-User-Roles", encodeHeaderList(user.Roles))
	w.Header().Set("X-Auth-User-Permissions", encodeHeaderList(user.Permissions))
}

// encodeHeaderList joins values with a literal comma. Each element is
// individually URL-encoded first when it contains a comma (which would
// otherwise be ambiguous with the separator) or a character outside a
// plain HTTP token; well-formed values (the common case: role/permission
// names, emails, ids) pass through unescaped, matching spec.md's
// scenario output "X-Auth-User-Roles: admin,user".
func encodeHeaderList(values []string) string {
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = encodeHeaderValue(v)
	}
	return strings.Join(encoded, ",")
}

// encodeHeaderValue URL-encodes v unless it is already a plain HTTP
// token (no commas, spaces, or other characters requiring escaping).
func encodeHeaderValue(v string) string {
	if isPlainToken(v) {
		return v
	}
	return url.QueryEscape(v)
}

func isPlainToken(v string) bool {
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == '@':
		default:
			return false
		}
	}
	return true
}
