package tenant

import (
	"net/http/httptest"
	"testing"
)

func TestResolveHeaderWins(t *testing.T) {
	r := NewResolver("", "warung.example", "")
	req := httptest.NewRequest("GET", "http://kopi.warung.example/api", nil)
	req.Header.Set("X-Tenant-ID", "bakso")
	if got := r.Resolve(req); got != "bakso" {
		t.Fatalf("expected header tenant bakso, got %q", got)
	}
}

func TestResolveSubdomain(t *testing.T) {
	r := NewResolver("", "warung.example", "")
	req := httptest.NewRequest("GET", "http://kopi.warung.example:8080/api", nil)
	if got := r.Resolve(req); got != "kopi" {
		t.Fatalf("expected subdomain tenant kopi, got %q", got)
	}
}

func TestResolveRootDomainIsEmpty(t *testing.T) {
	r := NewResolver("", "warung.example", "")
	req := httptest.NewRequest("GET", "http://warung.example/api", nil)
	if got := r.Resolve(req); got != "" {
		t.Fatalf("root domain must not resolve to a tenant, got %q", got)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := With(t.Context(), "kopi")
	id, ok := From(ctx)
	if !ok || id != "kopi" {
		t.Fatalf("expected kopi from context, got %q ok=%v", id, ok)
	}
	if _, ok := From(t.Context()); ok {
		t.Fatal("empty context must not carry a tenant")
	}
}

func TestPrefixKey(t *testing.T) {
	if got := PrefixKey("kopi", "catalog:list"); got != "kopi:catalog:list" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := PrefixKey("", "catalog:list"); got != "catalog:list" {
		t.Fatalf("unexpected key %q", got)
	}
}
