package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/simpify/spark-backend/pkg/db/models"
)

// UserDTO is the subset of a user that is safe to hand to the frontend.
type UserDTO struct {
	ID                 uuid.UUID            `json:"id"`
	Email              string               `json:"email"`
	Username           string               `json:"username"`
	FirstName          string               `json:"firstName"`
	LastName           string               `json:"lastName"`
	AvatarURL          string               `json:"avatarUrl,omitempty"`
	Provider           string               `json:"provider,omitempty"`
	Gender             string               `json:"gender,omitempty"`
	Age                *int                 `json:"age,omitempty"`
	Location           string               `json:"location,omitempty"`
	Goal               string               `json:"goal,omitempty"`
	CommunicationStyle string               `json:"communicationStyle,omitempty"`
	TokenBalance       int                  `json:"tokenBalance"`
	IsPremium          bool                 `json:"isPremium"`
	Subscription       *models.Subscription `json:"subscription"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// CreateUserDTO holds the data required to persist a new user.
type CreateUserDTO struct {
	Email              string
	ExternalIdentityID *string
	Username           string
	FirstName          string
	LastName           string
	AvatarURL          string
	Provider           string
	Profile            models.ProfileAttributes
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:                 u.ID,
		Email:              u.Email,
		Username:           u.Username,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		AvatarURL:          u.AvatarURL,
		Provider:           u.Provider,
		Gender:             u.Profile.Gender,
		Age:                u.Profile.Age,
		Location:           u.Profile.Location,
		Goal:               u.Profile.Goal,
		CommunicationStyle: u.Profile.CommunicationStyle,
		TokenBalance:       u.TokenBalance,
		IsPremium:          u.IsPremium,
		Subscription:       u.Subscription,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// ToModel builds a new user with creation defaults applied.
func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:                 uuid.New(),
		ExternalIdentityID: c.ExternalIdentityID,
		Email:              c.Email,
		Username:           c.Username,
		FirstName:          c.FirstName,
		LastName:           c.LastName,
		AvatarURL:          c.AvatarURL,
		Provider:           c.Provider,
		Profile:            c.Profile,
		TokenBalance:       models.DefaultTokenBalance,
		IsPremium:          false,
	}
}
