package authz

import (
	"testing"

	"github.com/authgate/authgate/internal/model"
)

func strp(s string) *string { return &s }

func TestEvaluate_EmptyRequireBlockAllowsAnySession(t *testing.T) {
	session := model.Session{User: model.User{ID: "u1"}}
	allow, reason := Evaluate(session, model.RequireBlock{})
	if !allow {
		t.Fatalf("expected allow, got deny: %v", reason)
	}
	if reason != nil {
		t.Fatalf("expected nil deny reason, got %v", reason)
	}
}

func TestEvaluate_RoleMatch(t *testing.T) {
	session := model.Session{User: model.User{Roles: []string{"editor", "viewer"}}}
	req := model.RequireBlock{Roles: []string{"admin", "editor"}}

	allow, reason := Evaluate(session, req)
	if !allow {
		t.Fatalf("expected allow, got deny: %v", reason)
	}
}

func TestEvaluate_RoleDeny(t *testing.T) {
	session := model.Session{User: model.User{Roles: []string{"viewer"}}}
	req := model.RequireBlock{Roles: []string{"admin", "editor"}}

	allow, reason := Evaluate(session, req)
	if allow {
		t.Fatal("expected deny, got allow")
	}
	if reason.Kind != model.DenyMissingRole {
		t.Fatalf("expected DenyMissingRole, got %v", reason.Kind)
	}
}

func TestEvaluate_PermissionDeny(t *testing.T) {
	session := model.Session{User: model.User{Roles: []string{"admin"}, Permissions: []string{"read"}}}
	req := model.RequireBlock{Roles: []string{"admin"}, Permissions: []string{"write"}}

	allow, reason := Evaluate(session, req)
	if allow {
		t.Fatal("expected deny, got allow")
	}
	if reason.Kind != model.DenyMissingPermission {
		t.Fatalf("expected DenyMissingPermission, got %v", reason.Kind)
	}
}

func TestEvaluate_ScopeAllOfAcrossRequirements(t *testing.T) {
	session := model.Session{
		User: model.User{
			Teams: []model.Team{
				{ID: "t1", Scopes: []model.Scope{
					{ResourceType: "doc", Action: "read", ResourceID: "1"},
				}},
				{ID: "t2", Scopes: []model.Scope{
					{ResourceType: "doc", Action: "write", ResourceID: "1"},
				}},
			},
		},
	}
	req := model.RequireBlock{
		Scopes: []model.ScopeReq{
			{ResourceType: "doc", Action: "read"},
			{ResourceType: "doc", Action: "write"},
		},
	}

	allow, reason := Evaluate(session, req)
	if !allow {
		t.Fatalf("expected allow (scopes satisfied across teams), got deny: %v", reason)
	}
}

func TestEvaluate_ScopeMissingOneRequirement(t *testing.T) {
	session := model.Session{
		User: model.User{
			Teams: []model.Team{
				{ID: "t1", Scopes: []model.Scope{{ResourceType: "doc", Action: "read", ResourceID: "1"}}},
			},
		},
	}
	req := model.RequireBlock{
		Scopes: []model.ScopeReq{
			{ResourceType: "doc", Action: "read"},
			{ResourceType: "doc", Action: "delete"},
		},
	}

	allow, reason := Evaluate(session, req)
	if allow {
		t.Fatal("expected deny, got allow")
	}
	if reason.Kind != model.DenyMissingScope {
		t.Fatalf("expected DenyMissingScope, got %v", reason.Kind)
	}
}

func TestEvaluate_ScopeResourceIDConstraint(t *testing.T) {
	session := model.Session{
		User: model.User{
			Teams: []model.Team{
				{ID: "t1", Scopes: []model.Scope{{ResourceType: "doc", Action: "read", ResourceID: "1"}}},
			},
		},
	}
	req := model.RequireBlock{
		Scopes: []model.ScopeReq{{ResourceType: "doc", Action: "read", ResourceID: strp("2")}},
	}

	allow, reason := Evaluate(session, req)
	if allow {
		t.Fatal("expected deny: session scope is for resource 1, requirement pins resource 2")
	}
	if reason.Kind != model.DenyMissingScope {
		t.Fatalf("expected DenyMissingScope, got %v", reason.Kind)
	}
}

func TestEvaluate_TeamMatchByIDWithScopeContainment(t *testing.T) {
	session := model.Session{
		User: model.User{
			Teams: []model.Team{
				{ID: "team-a", Name: "Team A", Scopes: []model.Scope{
					{ResourceType: "billing", Action: "view", ResourceID: "acct-1"},
				}},
			},
		},
	}
	req := model.RequireBlock{
		Teams: []model.TeamReq{
			{ID: strp("team-a"), Scopes: []model.ScopeReq{{ResourceType: "billing", Action: "view"}}},
		},
	}

	allow, reason := Evaluate(session, req)
	if !allow {
		t.Fatalf("expected allow, got deny: %v", reason)
	}
}

func TestEvaluate_TeamIdentityMatchesButScopeMissing(t *testing.T) {
	session := model.Session{
		User: model.User{
			Teams: []model.Team{
				{ID: "team-a", Scopes: []model.Scope{{ResourceType: "billing", Action: "view", ResourceID: "acct-1"}}},
			},
		},
	}
	req := model.RequireBlock{
		Teams: []model.TeamReq{
			{ID: strp("team-a"), Scopes: []model.ScopeReq{{ResourceType: "billing", Action: "edit"}}},
		},
	}

	allow, reason := Evaluate(session, req)
	if allow {
		t.Fatal("expected deny, got allow")
	}
	if reason.Kind != model.DenyMissingTeamScope {
		t.Fatalf("expected DenyMissingTeamScope (identity matched, scope didn't), got %v", reason.Kind)
	}
}

func TestEvaluate_TeamNoIdentityMatch(t *testing.T) {
	session := model.Session{
		User: model.User{
			Teams: []model.Team{{ID: "team-b"}},
		},
	}
	req := model.RequireBlock{
		Teams: []model.TeamReq{{ID: strp("team-a")}},
	}

	allow, reason := Evaluate(session, req)
	if allow {
		t.Fatal("expected deny, got allow")
	}
	if reason.Kind != model.DenyMissingTeam {
		t.Fatalf("expected DenyMissingTeam, got %v", reason.Kind)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	session := model.Session{User: model.User{Roles: []string{"viewer"}}}
	req := model.RequireBlock{Roles: []string{"admin"}}

	allow1, reason1 := Evaluate(session, req)
	allow2, reason2 := Evaluate(session, req)
	if allow1 != allow2 || reason1.Kind != reason2.Kind {
		t.Fatal("expected identical result across repeated calls with the same inputs")
	}
}
