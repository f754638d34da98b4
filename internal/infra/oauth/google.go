package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/config"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProvider runs the authorization code flow against Google.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

var _ port.IdentityProvider = (*GoogleProvider)(nil)

// Option customises a GoogleProvider.
type Option func(*GoogleProvider)

// WithEndpoint overrides the authorization and token endpoints.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(p *GoogleProvider) { p.oauth.Endpoint = endpoint }
}

// WithUserInfoURL overrides the userinfo endpoint.
func WithUserInfoURL(u string) Option {
	return func(p *GoogleProvider) { p.userInfoURL = u }
}

// WithHTTPClient sets the client used for the token exchange and userinfo calls.
func WithHTTPClient(client *http.Client) Option {
	return func(p *GoogleProvider) { p.httpClient = client }
}

// NewGoogleProvider validates settings and builds the provider.
func NewGoogleProvider(settings config.OAuthProviderSettings, opts ...Option) (*GoogleProvider, error) {
	if !settings.Enabled() {
		return nil, oops.Code("OAUTH_CONFIG_INVALID").Errorf("google client id and secret are required")
	}
	if settings.RedirectURL == "" {
		return nil, oops.Code("OAUTH_CONFIG_INVALID").Errorf("google redirect url is required")
	}

	p := &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			RedirectURL:  settings.RedirectURL,
			Scopes:       settings.Scopes,
			Endpoint:     endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *GoogleProvider) Name() string {
	return domain.OAuthProviderGoogle
}

// AuthCodeURL returns the consent page URL carrying state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// Exchange trades code for a token and resolves the Google profile behind it.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return domain.ExternalIdentity{}, oops.Code("OAUTH_EXCHANGE_FAILED").With("provider", p.Name()).Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return domain.ExternalIdentity{}, oops.Code("OAUTH_USERINFO_FAILED").With("provider", p.Name()).Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.ExternalIdentity{}, oops.Code("OAUTH_USERINFO_FAILED").
			With("provider", p.Name()).
			With("status", resp.StatusCode).
			Errorf("userinfo request failed")
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return domain.ExternalIdentity{}, oops.Code("OAUTH_USERINFO_FAILED").With("provider", p.Name()).Wrap(err)
	}
	if info.ID == "" || info.Email == "" {
		return domain.ExternalIdentity{}, oops.Code("OAUTH_USERINFO_FAILED").
			With("provider", p.Name()).
			Errorf("userinfo response missing id or email")
	}

	return domain.ExternalIdentity{
		Provider:      p.Name(),
		Subject:       info.ID,
		Email:         strings.ToLower(strings.TrimSpace(info.Email)),
		EmailVerified: info.VerifiedEmail,
		Name:          strings.TrimSpace(info.Name),
	}, nil
}
