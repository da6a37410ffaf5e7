package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

var ErrUnknownProvider = errors.New("unknown oauth provider")

// Profile is the subset of a provider's user info Flowra keeps.
// EmailVerified is true only when the provider vouches for Email.
type Profile struct {
	ProviderID    string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

type Provider struct {
	Name       string
	Config     *oauth2.Config
	ProfileURL string

	parseProfile func(body []byte) (Profile, error)
}

type Providers map[string]*Provider

func (p Providers) Get(name string) (*Provider, error) {
	provider, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return provider, nil
}

type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
}

// NewProviders registers every provider that has a client id. Callback URLs
// are built from publicURL.
func NewProviders(publicURL string, google, kakao ProviderCredentials) Providers {
	providers := Providers{}

	if google.ClientID != "" {
		providers["google"] = NewGoogleProvider(publicURL, google)
	}

	if kakao.ClientID != "" {
		providers["kakao"] = NewKakaoProvider(publicURL, kakao)
	}

	return providers
}

func NewGoogleProvider(publicURL string, creds ProviderCredentials) *Provider {
	return &Provider{
		Name: "google",
		Config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  callbackURL(publicURL, "google"),
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
		ProfileURL:   "https://openidconnect.googleapis.com/v1/userinfo",
		parseProfile: parseGoogleProfile,
	}
}

func NewKakaoProvider(publicURL string, creds ProviderCredentials) *Provider {
	return &Provider{
		Name: "kakao",
		Config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  callbackURL(publicURL, "kakao"),
			Scopes:       []string{"profile_nickname", "profile_image", "account_email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://kauth.kakao.com/oauth/authorize",
				TokenURL:  "https://kauth.kakao.com/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		ProfileURL:   "https://kapi.kakao.com/v2/user/me",
		parseProfile: parseKakaoProfile,
	}
}

func callbackURL(publicURL, provider string) string {
	return strings.TrimSuffix(publicURL, "/") + "/api/auth/oauth/" + provider + "/callback"
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Authenticate exchanges the authorization code and fetches the user profile.
func (p *Provider) Authenticate(ctx context.Context, code string) (Profile, error) {
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: code exchange failed: %w", p.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ProfileURL, nil)
	if err != nil {
		return Profile{}, err
	}

	resp, err := p.Config.Client(ctx, token).Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: profile request failed: %w", p.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, fmt.Errorf("%s: failed to read profile: %w", p.Name, err)
	}

	if resp.StatusCode >= 400 {
		return Profile{}, fmt.Errorf("%s: profile endpoint returned status %d", p.Name, resp.StatusCode)
	}

	profile, err := p.parseProfile(body)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", p.Name, err)
	}

	if profile.ProviderID == "" {
		return Profile{}, fmt.Errorf("%s: profile has no subject id", p.Name)
	}

	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))

	return profile, nil
}

func parseGoogleProfile(body []byte) (Profile, error) {
	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}

	if err := json.Unmarshal(body, &info); err != nil {
		return Profile{}, fmt.Errorf("invalid profile: %w", err)
	}

	return Profile{
		ProviderID:    info.Sub,
		Email:         info.Email,
		EmailVerified: info.Email != "" && info.EmailVerified,
		Name:          info.Name,
		AvatarURL:     info.Picture,
	}, nil
}

func parseKakaoProfile(body []byte) (Profile, error) {
	var info struct {
		ID           int64 `json:"id"`
		KakaoAccount struct {
			Email           string `json:"email"`
			IsEmailValid    bool   `json:"is_email_valid"`
			IsEmailVerified bool   `json:"is_email_verified"`
			Profile         struct {
				Nickname        string `json:"nickname"`
				ProfileImageURL string `json:"profile_image_url"`
			} `json:"profile"`
		} `json:"kakao_account"`
	}

	if err := json.Unmarshal(body, &info); err != nil {
		return Profile{}, fmt.Errorf("invalid profile: %w", err)
	}

	profile := Profile{
		Email:         info.KakaoAccount.Email,
		EmailVerified: info.KakaoAccount.Email != "" && info.KakaoAccount.IsEmailValid && info.KakaoAccount.IsEmailVerified,
		Name:          info.KakaoAccount.Profile.Nickname,
		AvatarURL:     info.KakaoAccount.Profile.ProfileImageURL,
	}

	if info.ID != 0 {
		profile.ProviderID = strconv.FormatInt(info.ID, 10)
	}

	return profile, nil
}
