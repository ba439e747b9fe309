package enrollment

import (
	"context"

	"github.com/goliatone/go-router"
)

const (
	localsSessionKey   = "enrollment.session"
	localsPrincipalKey = "enrollment.principal"
	localsAccountKey   = "enrollment.account"
)

var principalCtxKey = &contextKey{"principal"}
var accountCtxKey = &contextKey{"account"}

type contextKey struct {
	name string
}

// WithPrincipalContext stores the session principal in ctx.
func WithPrincipalContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext returns the session principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok && raw != nil
}

// WithAccountContext stores the account the gate loaded.
func WithAccountContext(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountCtxKey, account)
}

// AccountFromContext returns the account the gate loaded, if any.
func AccountFromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok && raw != nil
}

// SessionFromRouter returns the session attached by the session middleware.
func SessionFromRouter(c router.Context) (*Session, bool) {
	raw, ok := c.Locals(localsSessionKey).(*Session)
	return raw, ok && raw != nil
}

// PrincipalFromRouter returns the principal of the current request.
func PrincipalFromRouter(c router.Context) (*Principal, bool) {
	raw, ok := c.Locals(localsPrincipalKey).(*Principal)
	return raw, ok && raw != nil
}

// AccountFromRouter returns the account loaded by RequireCapability.
func AccountFromRouter(c router.Context) (*Account, bool) {
	raw, ok := c.Locals(localsAccountKey).(*Account)
	return raw, ok && raw != nil
}
