package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/simpify/spark-backend/pkg/config"
)

// ErrIncompleteProfile is returned when the provider omits the subject or email.
var ErrIncompleteProfile = errors.New("identity provider returned an incomplete profile")

// Profile is the verified identity returned by the provider.
type Profile struct {
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	AvatarURL  string
	Provider   string
}

// Provider runs the authorization-code flow against a configurable endpoint.
// The profile is read from a "user" object in the token response when the
// provider embeds one, otherwise from the userinfo endpoint.
type Provider struct {
	config      *oauth2.Config
	name        string
	userInfoURL string
	authParams  []oauth2.AuthCodeOption
}

func New(cfg config.OAuthConfig) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("oauth client credentials are required")
	}
	if cfg.AuthURL == "" || cfg.TokenURL == "" {
		return nil, fmt.Errorf("oauth endpoints are required")
	}

	var params []oauth2.AuthCodeOption
	for _, pair := range cfg.AuthParams {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			continue
		}
		params = append(params, oauth2.SetAuthURLParam(key, value))
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		name:        cfg.ProviderName,
		userInfoURL: cfg.UserInfoURL,
		authParams:  params,
	}, nil
}

// AuthURL returns the URL the browser should be sent to.
func (p *Provider) AuthURL(state string) string {
	opts := append([]oauth2.AuthCodeOption{oauth2.AccessTypeOnline}, p.authParams...)
	return p.config.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a verified profile.
func (p *Provider) Exchange(ctx context.Context, code string) (*Profile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging oauth code: %w", err)
	}

	var profile *Profile
	if embedded, ok := token.Extra("user").(map[string]any); ok {
		profile = profileFromEmbedded(embedded)
		if method, ok := token.Extra("authentication_method").(string); ok && method != "" {
			profile.Provider = method
		}
	} else {
		if p.userInfoURL == "" {
			return nil, fmt.Errorf("%w: no user in token response and no userinfo endpoint", ErrIncompleteProfile)
		}
		profile, err = p.fetchUserInfo(ctx, token)
		if err != nil {
			return nil, err
		}
	}

	if profile.Provider == "" {
		profile.Provider = p.name
	}
	if profile.ExternalID == "" || profile.Email == "" {
		return nil, ErrIncompleteProfile
	}
	return profile, nil
}

func (p *Provider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building userinfo request: %w", err)
	}
	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling userinfo endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var claims struct {
		Sub        string `json:"sub"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decoding userinfo response: %w", err)
	}
	return &Profile{
		ExternalID: claims.Sub,
		Email:      claims.Email,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
		AvatarURL:  claims.Picture,
	}, nil
}

func profileFromEmbedded(user map[string]any) *Profile {
	str := func(key string) string {
		if v, ok := user[key].(string); ok {
			return v
		}
		return ""
	}
	return &Profile{
		ExternalID: str("id"),
		Email:      str("email"),
		FirstName:  str("first_name"),
		LastName:   str("last_name"),
		AvatarURL:  str("profile_picture_url"),
	}
}
