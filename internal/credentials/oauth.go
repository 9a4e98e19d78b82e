package credentials

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"crosspost/internal/models"
)

// Authorizer runs the interactive authorization code flow for a destination
// and turns the resulting grant into a Credential.
type Authorizer interface {
	// AuthCodeURL returns the consent page URL. verifier is empty unless
	// UsesPKCE reports true.
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*models.Credential, error)
	UsesPKCE() bool
}

// OAuth2Authorizer covers destinations that follow RFC 6749 closely enough
// for golang.org/x/oauth2.
type OAuth2Authorizer struct {
	Destination models.Destination
	Config      *oauth2.Config
	PKCE        bool
	AuthOptions []oauth2.AuthCodeOption
	// Template carries the destination ids copied into every new credential.
	Template models.Credential
	Client   *http.Client
}

func (a *OAuth2Authorizer) UsesPKCE() bool { return a.PKCE }

func (a *OAuth2Authorizer) AuthCodeURL(state, verifier string) string {
	opts := append([]oauth2.AuthCodeOption{}, a.AuthOptions...)
	if a.PKCE {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return a.Config.AuthCodeURL(state, opts...)
}

func (a *OAuth2Authorizer) Exchange(ctx context.Context, code, verifier string) (*models.Credential, error) {
	if a.Client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.Client)
	}
	var opts []oauth2.AuthCodeOption
	if a.PKCE {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := a.Config.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s code exchange: %w", a.Destination, err)
	}

	cred := a.Template
	cred.Destination = a.Destination
	cred.AccessToken = tok.AccessToken
	cred.RefreshToken = tok.RefreshToken
	cred.ExpiresAt = tokenExpiry(tok.Expiry)
	return &cred, nil
}

// TikTokAuthorizer implements the TikTok Business API authorization flow,
// whose token endpoint takes JSON instead of a form body.
type TikTokAuthorizer struct {
	BaseURL      string
	ClientKey    string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	BusinessID   string
	Client       *http.Client
}

func (a *TikTokAuthorizer) UsesPKCE() bool { return false }

func (a *TikTokAuthorizer) AuthCodeURL(state, _ string) string {
	q := url.Values{}
	q.Set("client_key", a.ClientKey)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(a.Scopes, " "))
	q.Set("redirect_uri", a.RedirectURI)
	q.Set("state", state)
	return a.BaseURL + "/open_api/v1.3/oauth/authorize/?" + q.Encode()
}

func (a *TikTokAuthorizer) Exchange(ctx context.Context, code, _ string) (*models.Credential, error) {
	resp, err := tiktokToken(ctx, a.Client, a.BaseURL+"/open_api/v1.3/oauth/token/", tiktokTokenRequest{
		ClientKey:    a.ClientKey,
		ClientSecret: a.ClientSecret,
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  a.RedirectURI,
	})
	if err != nil {
		return nil, err
	}
	return &models.Credential{
		Destination:  models.DestinationTikTok,
		AccessToken:  resp.Data.AccessToken,
		RefreshToken: resp.Data.RefreshToken,
		ExpiresAt:    expiresIn(resp.Data.ExpiresIn),
		BusinessID:   a.BusinessID,
	}, nil
}
