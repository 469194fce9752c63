package http

import (
	"context"

	"github.com/go-auth-flow/internal/domain"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkEmailVerified(ctx context.Context, userID string) error
}

// SessionRepository is the minimal interface the router requires from a session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Disable(ctx context.Context, sessionID string) error
}

// VerificationRepository is the minimal interface the router requires from a verification store.
type VerificationRepository interface {
	Put(ctx context.Context, v *domain.UserVerification) error
	Get(ctx context.Context, userID string, typ domain.OTPType) (*domain.UserVerification, error)
	Delete(ctx context.Context, userID string, typ domain.OTPType) error
}
