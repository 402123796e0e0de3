// Package adminauth implements the Admin API's authentication composition:
// an ordered list of authenticators where the first success wins, per
// spec.md §4.6/§9 "Admin auth composition".
package adminauth

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/authgate/authgate/internal/logging"
)

// adminModel is an inline RBAC model: any subject granted the "admin"
// role (via a g policy) may perform "access" on object "admin_api" (via
// the single p policy below). There are no model/policy asset files in
// this project, so the model is built from a literal rather than
// go:embed.
const adminModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// SessionResolver is the subset of the Session Resolver (C4) that
// admin-auth needs: given a raw cookie value, resolve a session or
// report failure. Defined locally to avoid adminauth depending on
// sessionresolve's full surface.
type SessionResolver interface {
	Resolve(ctx context.Context, cookieValue string) (Session, error)
}

// Session is the minimal shape admin-auth needs from a resolved session.
type Session struct {
	UserID string
	Roles  []string
}

// Authenticator is a single admin-auth mechanism. Authenticate returns
// true if it grants access; false means it does not, either because it
// does not apply to the request or because the request failed it, and
// the chain tries the next one.
type Authenticator interface {
	Authenticate(r *http.Request) bool
}

// BearerAuthenticator grants access when the request carries a bearer
// token matching secret, compared in constant time.
type BearerAuthenticator struct {
	Secret string
}

func (b BearerAuthenticator) Authenticate(r *http.Request) bool {
	if b.Secret == "" {
		return false
	}
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return false
	}
	token := h[len(prefix):]
	return subtle.ConstantTimeCompare([]byte(token), []byte(b.Secret)) == 1
}

// SessionRoleAuthenticator grants access when the request's session
// cookie resolves to a session whose roles intersect AdminRoles.
type SessionRoleAuthenticator struct {
	CookieName string
	AdminRoles []string
	Resolver   SessionResolver
	enforcer   *casbin.Enforcer
}

// NewSessionRoleAuthenticator builds the Casbin-backed role check:
// AdminRoles are each granted the "admin" role via g policies, and the
// single p policy grants "admin" access to admin_api/access.
func NewSessionRoleAuthenticator(cookieName string, adminRoles []string, resolver SessionResolver) (*SessionRoleAuthenticator, error) {
	m, err := model.NewModelFromString(adminModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	if _, err := e.AddPolicy("admin", "admin_api", "access"); err != nil {
		return nil, err
	}
	for _, role := range adminRoles {
		if _, err := e.AddGroupingPolicy(role, "admin"); err != nil {
			return nil, err
		}
	}
	return &SessionRoleAuthenticator{
		CookieName: cookieName,
		AdminRoles: adminRoles,
		Resolver:   resolver,
		enforcer:   e,
	}, nil
}

func (s *SessionRoleAuthenticator) Authenticate(r *http.Request) bool {
	if s.Resolver == nil || len(s.AdminRoles) == 0 {
		return false
	}
	cookie, err := r.Cookie(s.CookieName)
	if err != nil {
		return false
	}
	session, err := s.Resolver.Resolve(r.Context(), cookie.Value)
	if err != nil {
		return false
	}
	for _, role := range session.Roles {
		ok, err := s.enforcer.Enforce(role, "admin_api", "access")
		if err != nil {
			logging.CtxErr(r.Context(), err).Msg("admin role enforcement error")
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// Chain is an ordered list of authenticators; the first success wins. An
// empty chain always denies, matching spec.md §4.6: "If neither
// mechanism is configured, the admin API is effectively inaccessible."
type Chain []Authenticator

// Authenticate reports whether any authenticator in the chain grants
// access.
func (c Chain) Authenticate(r *http.Request) bool {
	for _, a := range c {
		if a.Authenticate(r) {
			return true
		}
	}
	return false
}

// Middleware wraps next, responding 401 with WWW-Authenticate: Bearer
// when the chain denies access.
func (c Chain) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.Authenticate(r) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
