package repository

import (
	"context"

	"zibana/internal/domain"
)

// UserRepository defines the persistence operations for rider accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetAll(ctx context.Context) ([]*domain.User, error)
}
