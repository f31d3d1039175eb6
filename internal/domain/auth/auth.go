// Package auth is the narrow boundary to the authentication collaborator.
// Sign-in and sessions are handled elsewhere; transports place the signed-in
// owner on the request context and the engine reads it back from there.
package auth

import "context"

// Authenticator exposes the currently signed-in owner.
type Authenticator interface {
	CurrentOwnerID(ctx context.Context) (string, bool)
}

type ownerKey struct{}

// WithOwner returns a context carrying the authenticated owner id.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFrom extracts the owner placed by WithOwner.
func OwnerFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// ContextAuthenticator resolves the owner from the request context.
type ContextAuthenticator struct{}

func (ContextAuthenticator) CurrentOwnerID(ctx context.Context) (string, bool) {
	return OwnerFrom(ctx)
}
