package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	require.NoError(t, InitJWTSecret("test-secret"))

	token, err := GenerateJWT(42, "ada@example.com")
	require.NoError(t, err)

	claims, err := VerifyJWT(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestInitJWTSecret_Empty(t *testing.T) {
	assert.Error(t, InitJWTSecret(""))
}

func TestVerifyJWT_Rejects(t *testing.T) {
	require.NoError(t, InitJWTSecret("test-secret"))

	t.Run("wrong secret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 1})
		signed, err := token.SignedString([]byte("other-secret"))
		require.NoError(t, err)

		_, err = VerifyJWT(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			UserID: 1,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = VerifyJWT(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user id", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Email: "x@example.com"})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = VerifyJWT(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := VerifyJWT("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPassword(t *testing.T) {
	UseMinPasswordCost()

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
	assert.False(t, CheckPassword("", "anything"))
}

func TestNewProviders_OnlyConfigured(t *testing.T) {
	providers := NewProviders("https://api.flowra.dev/", ProviderCredentials{ClientID: "g"}, ProviderCredentials{})

	google, err := providers.Get("google")
	require.NoError(t, err)
	assert.Equal(t, "https://api.flowra.dev/api/auth/oauth/google/callback", google.Config.RedirectURL)

	_, err = providers.Get("kakao")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestProviderAuthenticate_Kakao(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "kakao-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-123",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v2/user/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id": 98765, "kakao_account": {"email": "Min@Example.com", "profile": {"nickname": "min", "profile_image_url": "https://img/x.png"}}}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	providers := NewProviders("http://localhost:3000", ProviderCredentials{}, ProviderCredentials{ClientID: "kakao-id", ClientSecret: "kakao-secret"})
	kakao, err := providers.Get("kakao")
	require.NoError(t, err)

	kakao.Config.Endpoint.TokenURL = server.URL + "/oauth/token"
	kakao.ProfileURL = server.URL + "/v2/user/me"

	profile, err := kakao.Authenticate(context.Background(), "the-code")
	require.NoError(t, err)

	assert.Equal(t, "98765", profile.ProviderID)
	assert.Equal(t, "min@example.com", profile.Email)
	assert.Equal(t, "min", profile.Name)
	assert.Equal(t, "https://img/x.png", profile.AvatarURL)
	assert.False(t, profile.EmailVerified)
}

func TestParseProfile_EmailVerified(t *testing.T) {
	tests := []struct {
		name     string
		parse    func([]byte) (Profile, error)
		body     string
		verified bool
	}{
		{"google verified", parseGoogleProfile, `{"sub":"1","email":"a@example.com","email_verified":true}`, true},
		{"google unverified", parseGoogleProfile, `{"sub":"1","email":"a@example.com","email_verified":false}`, false},
		{"google claim missing", parseGoogleProfile, `{"sub":"1","email":"a@example.com"}`, false},
		{"google no email", parseGoogleProfile, `{"sub":"1","email_verified":true}`, false},
		{"kakao verified", parseKakaoProfile, `{"id":1,"kakao_account":{"email":"a@example.com","is_email_valid":true,"is_email_verified":true}}`, true},
		{"kakao unverified", parseKakaoProfile, `{"id":1,"kakao_account":{"email":"a@example.com","is_email_valid":true,"is_email_verified":false}}`, false},
		{"kakao invalid", parseKakaoProfile, `{"id":1,"kakao_account":{"email":"a@example.com","is_email_valid":false,"is_email_verified":true}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := tt.parse([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, "1", profile.ProviderID)
			assert.Equal(t, tt.verified, profile.EmailVerified)
		})
	}
}

func TestProviderAuthenticate_ProfileError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","token_type":"bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	providers := NewProviders("http://localhost:3000", ProviderCredentials{ClientID: "g", ClientSecret: "s"}, ProviderCredentials{})
	google := providers["google"]
	google.Config.Endpoint.TokenURL = server.URL + "/token"
	google.ProfileURL = server.URL + "/userinfo"

	_, err := google.Authenticate(context.Background(), "code")
	assert.ErrorContains(t, err, "status 401")
}

func TestAuthCodeURL(t *testing.T) {
	providers := NewProviders("http://localhost:3000", ProviderCredentials{ClientID: "g"}, ProviderCredentials{})

	raw := providers["google"].AuthCodeURL("state-xyz")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "accounts.google.com", parsed.Host)
	assert.Equal(t, "state-xyz", parsed.Query().Get("state"))
	assert.Equal(t, "g", parsed.Query().Get("client_id"))
}
