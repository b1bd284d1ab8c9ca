// Package tenant resolves and validates the tenant scope (C1) that every
// indexing and retrieval operation is filtered by.
package tenant

import (
	"context"
	"regexp"

	"ragforge/internal/rag/ragerr"
)

type ctxKey struct{}

// idPattern restricts tenant ids to a conservative path-safe charset:
// alphanumerics, dash, underscore, 1-128 chars. This is stricter than
// internal/validation.ProjectID, which only rejects path separators and
// dot segments and sets no length limit.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Validate checks a raw tenant identifier for path-safety and length
// against idPattern.
func Validate(raw string) (string, error) {
	if raw == "" {
		return "", ragerr.New(ragerr.TenantMissing, "tenant: empty identifier")
	}
	if !idPattern.MatchString(raw) {
		return "", ragerr.New(ragerr.InvalidInput, "tenant: identifier contains disallowed characters")
	}
	return raw, nil
}

// WithTenant returns a context carrying the validated tenant id.
func WithTenant(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext resolves the tenant id previously attached with WithTenant.
// Returns TenantMissing if absent, matching the spec's contract that every
// operation must be able to resolve a tenant before proceeding.
func FromContext(ctx context.Context) (string, error) {
	v, ok := ctx.Value(ctxKey{}).(string)
	if !ok || v == "" {
		return "", ragerr.New(ragerr.TenantMissing, "tenant: no tenant in context")
	}
	return v, nil
}
