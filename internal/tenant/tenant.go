package tenant

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey struct{}

// Resolver extracts the tenant identifier from incoming requests, preferring
// an explicit header and falling back to the request subdomain.
type Resolver struct {
	Header        string
	RootDomain    string
	DefaultTenant string
}

// NewResolver builds a resolver. An empty header name defaults to X-Tenant-ID.
func NewResolver(header, rootDomain, defaultTenant string) *Resolver {
	if header == "" {
		header = "X-Tenant-ID"
	}
	return &Resolver{
		Header:        header,
		RootDomain:    strings.ToLower(strings.TrimSpace(rootDomain)),
		DefaultTenant: strings.TrimSpace(defaultTenant),
	}
}

// Middleware injects the resolved tenant into the request context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := r.Resolve(req)
		if id == "" {
			id = r.DefaultTenant
		}
		if id != "" {
			req = req.WithContext(With(req.Context(), id))
		}
		next.ServeHTTP(w, req)
	})
}

// Resolve returns the tenant slug for the request, or empty when none applies.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if id := strings.TrimSpace(req.Header.Get(r.Header)); id != "" {
		return id
	}
	host := hostOnly(req.Host)
	if host == "" || r.RootDomain == "" {
		return ""
	}
	if host == r.RootDomain {
		return ""
	}
	suffix := "." + r.RootDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if idx := strings.Index(sub, "."); idx != -1 {
		sub = sub[:idx]
	}
	return strings.TrimSpace(sub)
}

func hostOnly(hostport string) string {
	hostport = strings.ToLower(strings.TrimSpace(hostport))
	if hostport == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}

// With stores the tenant identifier in the context.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// From extracts the tenant identifier from the context.
func From(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(contextKey{}).(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

// PrefixKey namespaces a cache or queue key by tenant.
func PrefixKey(tenantID, key string) string {
	if tenantID == "" {
		return key
	}
	return tenantID + ":" + key
}
