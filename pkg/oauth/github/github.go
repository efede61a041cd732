// Package github implements the GitHub OAuth2 login flow on golang.org/x/oauth2.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	githubEndpoint "golang.org/x/oauth2/github"
)

const defaultAPIBase = "https://api.github.com"

// Profile is the subset of the GitHub user profile needed for login.
type Profile struct {
	ID        string
	Login     string
	Name      string
	Email     string
	AvatarURL string
}

// DisplayName prefers the full name, then the login, then the email local part.
func (p Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Login != "" {
		return p.Login
	}
	if at := strings.IndexByte(p.Email, '@'); at > 0 {
		return p.Email[:at]
	}
	return "github-" + p.ID
}

// Config configures the provider.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Provider performs the authorization code exchange and profile lookup.
type Provider struct {
	oauth   *oauth2.Config
	apiBase string
	client  *http.Client
}

// Option customises a Provider.
type Option func(*Provider)

// WithEndpoint overrides the OAuth endpoints and API base URL.
func WithEndpoint(ep oauth2.Endpoint, apiBase string) Option {
	return func(p *Provider) {
		p.oauth.Endpoint = ep
		p.apiBase = strings.TrimRight(apiBase, "/")
	}
}

// WithHTTPClient sets the client used for the exchange and API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// NewProvider builds a GitHub provider requesting read:user and user:email.
func NewProvider(cfg Config, opts ...Option) *Provider {
	p := &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     githubEndpoint.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiBase: defaultAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthCodeURL returns the GitHub consent page URL for state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades code for a token and fetches the user's profile.
func (p *Provider) Exchange(ctx context.Context, code string) (*Profile, error) {
	if code == "" {
		return nil, errors.New("authorization code missing")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	httpClient := p.oauth.Client(ctx, tok)

	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := p.getJSON(ctx, httpClient, "/user", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, errors.New("github profile has no id")
	}

	profile := &Profile{
		ID:        strconv.FormatInt(user.ID, 10),
		Login:     user.Login,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
	}
	if profile.Email == "" {
		profile.Email = p.primaryEmail(ctx, httpClient)
	}
	return profile, nil
}

// primaryEmail returns the verified primary address, or "" when the user
// keeps every address private.
func (p *Provider) primaryEmail(ctx context.Context, c *http.Client) string {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := p.getJSON(ctx, c, "/user/emails", &emails); err != nil {
		return ""
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}

func (p *Provider) getJSON(ctx context.Context, c *http.Client, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("github %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode github %s: %w", path, err)
	}
	return nil
}
