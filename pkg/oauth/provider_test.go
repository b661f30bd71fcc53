package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpify/spark-backend/pkg/config"
)

func testConfig(serverURL string) config.OAuthConfig {
	return config.OAuthConfig{
		ProviderName: "workos",
		ClientID:     "client_123",
		ClientSecret: "sk_test",
		RedirectURI:  "http://localhost:8080/api/v1/users/callback",
		AuthURL:      serverURL + "/authorize",
		TokenURL:     serverURL + "/token",
		AuthParams:   []string{"provider=authkit"},
	}
}

func TestAuthURLCarriesStateAndParams(t *testing.T) {
	p, err := New(testConfig("https://idp.example.com"))
	require.NoError(t, err)

	parsed, err := url.Parse(p.AuthURL("state-abc"))
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "state-abc", q.Get("state"))
	assert.Equal(t, "client_123", q.Get("client_id"))
	assert.Equal(t, "authkit", q.Get("provider"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestExchangeReadsEmbeddedUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "abc123", r.PostForm.Get("code"))
		assert.Equal(t, "sk_test", r.PostForm.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":          "at",
			"token_type":            "Bearer",
			"authentication_method": "GoogleOAuth",
			"user": map[string]any{
				"id":                  "ext-1",
				"email":               "a@b.com",
				"first_name":          "Jane",
				"last_name":           "Doe",
				"profile_picture_url": "https://img.example.com/jane.png",
			},
		})
	}))
	defer srv.Close()

	p, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	profile, err := p.Exchange(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, &Profile{
		ExternalID: "ext-1",
		Email:      "a@b.com",
		FirstName:  "Jane",
		LastName:   "Doe",
		AvatarURL:  "https://img.example.com/jane.png",
		Provider:   "GoogleOAuth",
	}, profile)
}

func TestExchangeFallsBackToUserInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-2","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-2", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"sub":"oidc-9","email":"oidc@example.com","given_name":"Sam","family_name":"Lee"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.UserInfoURL = srv.URL + "/userinfo"
	p, err := New(cfg)
	require.NoError(t, err)

	profile, err := p.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "oidc-9", profile.ExternalID)
	assert.Equal(t, "Sam", profile.FirstName)
	assert.Equal(t, "workos", profile.Provider)
}

func TestExchangeSurfacesProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	p, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = p.Exchange(context.Background(), "expired")
	require.Error(t, err)
}

func TestExchangeRejectsIncompleteProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","user":{"id":"ext-1"}}`))
	}))
	defer srv.Close()

	p, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = p.Exchange(context.Background(), "code")
	require.True(t, errors.Is(err, ErrIncompleteProfile), "got %v", err)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(config.OAuthConfig{AuthURL: "a", TokenURL: "b"})
	require.Error(t, err)
}
