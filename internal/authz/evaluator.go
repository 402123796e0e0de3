// Package authz implements the Authorization Evaluator: it decides whether
// a resolved session satisfies a route's RequireBlock, with audit logging
// and Prometheus metrics around the decision.
package authz

import (
	"github.com/authgate/authgate/internal/model"
)

// Evaluate decides whether session satisfies req. A zero-value (empty)
// RequireBlock means "session required, any authenticated user allowed" —
// since a session was already resolved to reach this call, that case
// always allows.
//
// Checks run in this order: roles, permissions, scopes, teams. The first
// unsatisfied predicate determines the deny reason; predicates left empty
// are treated as satisfied.
func Evaluate(session model.Session, req model.RequireBlock) (bool, *model.DenyReason) {
	if !req.Active() {
		return true, nil
	}

	if len(req.Roles) > 0 && !session.User.HasAny(session.User.Roles, req.Roles) {
		return false, &model.DenyReason{Kind: model.DenyMissingRole}
	}

	if len(req.Permissions) > 0 && !session.User.HasAny(session.User.Permissions, req.Permissions) {
		return false, &model.DenyReason{Kind: model.DenyMissingPermission}
	}

	if len(req.Scopes) > 0 && !hasRequiredScopes(session, req.Scopes) {
		return false, &model.DenyReason{Kind: model.DenyMissingScope}
	}

	if len(req.Teams) > 0 {
		if ok, reason := hasTeamAccess(session, req.Teams); !ok {
			return false, reason
		}
	}

	return true, nil
}

// hasRequiredScopes reports whether every ScopeReq in want is satisfied by
// at least one scope in the union of the session's team scopes (an
// all-of match across requirements, any-of match per requirement).
func hasRequiredScopes(session model.Session, want []model.ScopeReq) bool {
	available := session.AllScopes()
	for _, req := range want {
		if !anyScopeSatisfies(req, available) {
			return false
		}
	}
	return true
}

func anyScopeSatisfies(req model.ScopeReq, available []model.Scope) bool {
	for _, sc := range available {
		if req.SatisfiedBy(sc) {
			return true
		}
	}
	return false
}

// hasTeamAccess reports whether the session's user belongs to at least
// one team matching any TeamReq in want, where matching a TeamReq
// requires both an identity match (id or name) and, if the requirement
// carries scopes, an all-of containment of those scopes within the
// matched team's own scopes. If an identity match is found but its
// scopes fall short, the deny reason distinguishes that from no identity
// match at all.
func hasTeamAccess(session model.Session, want []model.TeamReq) (bool, *model.DenyReason) {
	identityMatched := false
	for _, tr := range want {
		for _, team := range session.User.Teams {
			if !tr.MatchesIdentity(team) {
				continue
			}
			identityMatched = true
			if teamSatisfiesScopes(team, tr.Scopes) {
				return true, nil
			}
		}
	}
	if identityMatched {
		return false, &model.DenyReason{Kind: model.DenyMissingTeamScope}
	}
	return false, &model.DenyReason{Kind: model.DenyMissingTeam}
}

func teamSatisfiesScopes(team model.Team, want []model.ScopeReq) bool {
	for _, req := range want {
		if !anyScopeSatisfies(req, team.Scopes) {
			return false
		}
	}
	return true
}
