package token

import "context"

type ctxKey struct{}

// NewContext returns a copy of ctx carrying verified access claims.
func NewContext(ctx context.Context, c *AccessClaims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the claims stored by NewContext, if any.
func FromContext(ctx context.Context) (*AccessClaims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*AccessClaims)
	return c, ok && c != nil
}
