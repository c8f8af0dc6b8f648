package shared

import "context"

type browsingContextKey struct{}

// WithBrowsingContext stores the browsing-context id in ctx.
func WithBrowsingContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, browsingContextKey{}, id)
}

// BrowsingContextFrom returns the browsing-context id carried by ctx.
func BrowsingContextFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(browsingContextKey{}).(string)
	return id, ok && id != ""
}

type actorKey struct{}

// WithActor records the uid of the signed-in user acting in ctx.
func WithActor(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, actorKey{}, uid)
}

// ActorFrom returns the acting uid stored by WithActor, or "".
func ActorFrom(ctx context.Context) string {
	uid, _ := ctx.Value(actorKey{}).(string)
	return uid
}
