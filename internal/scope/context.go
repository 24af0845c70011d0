package scope

import "context"

type scopeContextKey struct{}

// ContextWithScope attaches the tenant scope established by the authorization
// gate. Handlers downstream construct their data clients from this value.
func ContextWithScope(ctx context.Context, sc Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, sc)
}

// FromContext extracts the tenant scope from the context.
func FromContext(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	sc, ok := ctx.Value(scopeContextKey{}).(Scope)
	if !ok || sc.Zero() {
		return Scope{}, false
	}
	return sc, true
}
