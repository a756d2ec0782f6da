package authz

import "testing"

func TestIsAuthorized_ExactGlob(t *testing.T) {
	p := Policy{AllowPatterns: []string{"files:read_*", "files:list"}}
	if !p.IsAuthorized("files:read_document") {
		t.Error("expected files:read_document to be authorized")
	}
	if p.IsAuthorized("files:delete") {
		t.Error("expected files:delete to be unauthorized")
	}
}

func TestIsAuthorized_LevenshteinFallback(t *testing.T) {
	p := Policy{AllowPatterns: []string{"email:send_mail"}}
	if !p.IsAuthorized("email:send_mal") {
		t.Error("expected close-match tool name to be authorized via fallback")
	}
	if p.IsAuthorized("email:totally_different_tool") {
		t.Error("expected distant tool name to remain unauthorized")
	}
}

func TestRequiresApproval_ForcedGlobally(t *testing.T) {
	p := Policy{AllowPatterns: []string{"*"}, ForceApproval: true}
	if !p.RequiresApproval("files:read") {
		t.Error("expected ForceApproval to require approval for every tool")
	}
}

func TestRequiresApproval_SpecificTool(t *testing.T) {
	p := Policy{AllowPatterns: []string{"*"}, RequireApproval: []string{"files:delete_*"}}
	if !p.RequiresApproval("files:delete_document") {
		t.Error("expected files:delete_document to require approval")
	}
	if p.RequiresApproval("files:read_document") {
		t.Error("did not expect files:read_document to require approval")
	}
}

func TestDefaultPolicy_AllowsEverythingWithoutApproval(t *testing.T) {
	p := DefaultPolicy()
	if !p.IsAuthorized("anything:goes") {
		t.Error("expected default policy to authorize any tool")
	}
	if p.RequiresApproval("anything:goes") {
		t.Error("expected default policy to never require approval")
	}
}
