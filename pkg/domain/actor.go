package domain

import "context"

type actorKey struct{}

// ContextWithActor records the id of the employee performing a mutation so the
// store can stamp audit fields.
func ContextWithActor(ctx context.Context, employeeID string) context.Context {
	return context.WithValue(ctx, actorKey{}, employeeID)
}

// ActorFromContext returns the acting employee id, or "" when none is set.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}
