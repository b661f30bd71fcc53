package auth

import (
	"context"
	"errors"

	"github.com/simpify/spark-backend/internal/users"
	"github.com/simpify/spark-backend/pkg/db/models"
	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
)

// RegisterService adds email-only users to the waitlist.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*models.User, error)
}

type registerService struct {
	users users.Store
}

func NewRegisterService(store users.Store) (RegisterService, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user store required")
	}
	return &registerService{users: store}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	user, err := s.users.Create(ctx, users.CreateUserDTO{Email: req.Email})
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, users.ErrInvalidEmail):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email").
			WithDetails(map[string]string{"email": "must be a valid email"})
	case errors.Is(err, users.ErrEmailTaken):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email already registered").
			WithDetails(map[string]string{"email": "already registered"})
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}
}
