// Package model defines the AuthGate data model: the configuration
// snapshot, route catalogue, authorization predicates, and the session
// payload returned by the external session endpoint.
package model

import "time"

// AuthConfig is the effective configuration snapshot used by request
// handlers. It is published atomically; handlers read one snapshot per
// request and never observe a partial update.
type AuthConfig struct {
	SessionURL    string     `json:"session_url"`
	LoginRedirect string     `json:"login_redirect"`
	CookieName    string     `json:"cookie_name"`
	Routes        []RouteDef `json:"routes"`
}

// RouteDef is a single protected-surface specification.
type RouteDef struct {
	// ID is opaque and present only for database-backed routes.
	ID      *int         `json:"id,omitempty"`
	Host    string       `json:"host"`
	Path    string       `json:"path"`
	Require RequireBlock `json:"require"`
}

// RequireBlock is the authorization predicate attached to a route. All
// fields are optional; an all-empty block means "session required, any
// authenticated user allowed" (see DESIGN.md open question (a)).
type RequireBlock struct {
	Roles       []string   `json:"roles,omitempty"`
	Permissions []string   `json:"permissions,omitempty"`
	Scopes      []ScopeReq `json:"scopes,omitempty"`
	Teams       []TeamReq  `json:"teams,omitempty"`
}

// Active reports whether any predicate field is non-empty.
func (r RequireBlock) Active() bool {
	return len(r.Roles) > 0 || len(r.Permissions) > 0 || len(r.Scopes) > 0 || len(r.Teams) > 0
}

// ScopeReq is a single scope requirement.
type ScopeReq struct {
	ResourceType string  `json:"resource_type"`
	Action       string  `json:"action"`
	ResourceID   *string `json:"resource_id,omitempty"`
}

// SatisfiedBy reports whether the given Scope satisfies this requirement.
func (s ScopeReq) SatisfiedBy(sc Scope) bool {
	if s.ResourceType != sc.ResourceType || s.Action != sc.Action {
		return false
	}
	if s.ResourceID != nil && *s.ResourceID != sc.ResourceID {
		return false
	}
	return true
}

// TeamReq is a single team requirement. At least one of ID/Name should be
// set by a well-formed catalogue, but the evaluator does not itself
// enforce that — it simply fails to match any team.
type TeamReq struct {
	ID     *string    `json:"id,omitempty"`
	Name   *string    `json:"name,omitempty"`
	Scopes []ScopeReq `json:"scopes,omitempty"`
}

// MatchesIdentity reports whether the given Team's id/name satisfies the
// requirement's identifier.
func (t TeamReq) MatchesIdentity(team Team) bool {
	if t.ID != nil && *t.ID == team.ID {
		return true
	}
	if t.Name != nil && *t.Name == team.Name {
		return true
	}
	return false
}

// Scope is a (resource_type, resource_id, action) grant.
type Scope struct {
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Action       string `json:"action"`
}

// Team is a named collection of scopes attached to a user.
type Team struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	IsOwner bool    `json:"is_owner"`
	Scopes  []Scope `json:"scopes"`
}

// User is the authenticated principal described by a Session.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Teams       []Team   `json:"teams"`
}

// HasAny reports whether any element of have (the user's roles or
// permissions) appears in want. An empty want is always satisfied.
func (u User) HasAny(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// Session is the payload returned by the external session endpoint.
type Session struct {
	User      User   `json:"user"`
	TenantID  string `json:"tenant_id"`
	Authority string `json:"authority"`
}

// AllScopes returns the union of scopes across all of the session's teams.
func (s Session) AllScopes() []Scope {
	var out []Scope
	for _, t := range s.User.Teams {
		out = append(out, t.Scopes...)
	}
	return out
}

// CacheEntry is the in-process representation of a cached session.
type CacheEntry struct {
	Session   Session
	ExpiresAt time.Time
}

// DenyReasonKind enumerates why an authorization check was denied.
type DenyReasonKind string

const (
	DenyMissingRole       DenyReasonKind = "MissingRole"
	DenyMissingPermission DenyReasonKind = "MissingPermission"
	DenyMissingScope      DenyReasonKind = "MissingScope"
	DenyMissingTeam       DenyReasonKind = "MissingTeam"
	DenyMissingTeamScope  DenyReasonKind = "MissingTeamScope"
)

// DenyReason carries the enumerated kind plus enough context to render a
// useful header/log line without leaking session contents.
type DenyReason struct {
	Kind   DenyReasonKind
	Detail string
}

func (d DenyReason) String() string {
	if d.Detail == "" {
		return string(d.Kind)
	}
	return string(d.Kind) + ": " + d.Detail
}
