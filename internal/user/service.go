package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizhub/internal/domain"
	"github.com/victornm/quizhub/internal/errors"
)

type Store interface {
	InsertUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

type Config struct {
	Store Store
}

type Service struct {
	store Store
}

func NewService(c Config) *Service {
	return &Service{store: c.Store}
}

type CreateUserRequest struct {
	Username string
	Role     domain.Role
}

// CreateUser registers a user with zeroed stats.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)

	var violations []errors.FieldViolation
	if n := len(username); n < 3 || n > 30 {
		violations = append(violations, errors.FieldViolation{Field: "username", Reason: "must be 3 to 30 characters"})
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		violations = append(violations, errors.FieldViolation{Field: "role", Reason: "must be one of [user admin]"})
	}

	if len(violations) > 0 {
		return nil, errors.Validation(violations)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	u := domain.User{
		UserID:     id.String(),
		Username:   username,
		Role:       role,
		CreateTime: time.Now().UTC(),
	}

	if err := s.store.InsertUser(ctx, u); err != nil {
		if errors.Is(err, errors.CodeAlreadyExists) {
			return nil, errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("username already taken: %s", username),
				errors.WithCause(err),
			)
		}
		return nil, err
	}

	return &u, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &u, nil
}
