package auth

import (
	"time"

	"github.com/simpify/spark-backend/internal/users"
	"github.com/simpify/spark-backend/pkg/db/models"
)

// RegisterRequest is the waitlist sign-up payload.
type RegisterRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// OnboardingFields are the self-reported answers supplied on callback.
type OnboardingFields struct {
	Gender             string
	Age                *int
	Location           string
	Goal               string
	CommunicationStyle string
}

func (f OnboardingFields) toProfile() models.ProfileAttributes {
	return models.ProfileAttributes{
		Gender:             f.Gender,
		Age:                f.Age,
		Location:           f.Location,
		Goal:               f.Goal,
		CommunicationStyle: f.CommunicationStyle,
	}
}

// CallbackResult is produced by a successful identity resolution.
type CallbackResult struct {
	User         *models.User
	Created      bool
	SessionID    string
	SessionToken string
	ExpiresAt    time.Time
}

// CallbackResponse is the body returned to the frontend.
type CallbackResponse struct {
	User *users.UserDTO `json:"user"`
}

// LoginResponse carries the provider URL the browser should visit.
type LoginResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
}
