package middleware

import (
	"context"

	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.Role {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.Role); ok {
		return v
	}
	return ""
}

// ActorFromContext returns the authenticated caller. ok is false when the
// request never went through Auth.
func ActorFromContext(ctx context.Context) (auth.Actor, bool) {
	actor := auth.Actor{ID: UserIDFromContext(ctx), Role: RoleFromContext(ctx)}
	return actor, actor.ID != "" && actor.Role != ""
}

// WithActor injects the caller into the context.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.ID)
	return context.WithValue(ctx, ctxRole, actor.Role)
}
