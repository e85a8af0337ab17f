package http

import (
	"context"
	"fmt"

	"booksphere-backend/internal/domain"
)

type contextKey int

const (
	userIDKey contextKey = iota
	userRoleKey
)

func withUser(ctx context.Context, userID int64, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, userRoleKey, domain.UserRole(role))
}

// GetUserIDFromContext returns the id the auth middleware put on the request context.
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(userIDKey).(int64)
	if !ok || id <= 0 {
		return 0, fmt.Errorf("%w: user id is not present on the request", domain.ErrInvalidCredentials)
	}
	return id, nil
}

func roleFromContext(ctx context.Context) domain.UserRole {
	role, _ := ctx.Value(userRoleKey).(domain.UserRole)
	return role
}

func isAdmin(ctx context.Context) bool {
	return roleFromContext(ctx) == domain.UserRoleAdmin
}
