// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"crosspost/internal/models"
)

// metaDefaultLifetime applies when the Graph API omits expires_in on a
// long-lived token exchange.
const metaDefaultLifetime = 60 * 24 * time.Hour

// defaultTokenLifetime applies when an OAuth 2.0 token response omits
// expires_in. A zero expiry would otherwise read as "never expires".
const defaultTokenLifetime = time.Hour

func tokenExpiry(expiry time.Time) time.Time {
	if expiry.IsZero() {
		return time.Now().Add(defaultTokenLifetime).UTC()
	}
	return expiry.UTC()
}

func expiresIn(seconds int64) time.Time {
	if seconds <= 0 {
		return time.Now().Add(defaultTokenLifetime).UTC()
	}
	return time.Now().Add(time.Duration(seconds) * time.Second).UTC()
}

// OAuth2Refresher refreshes standard OAuth 2.0 tokens (X, YouTube, LinkedIn)
// through golang.org/x/oauth2.
type OAuth2Refresher struct {
	Config *oauth2.Config
	Client *http.Client
}

// Refresh exchanges the stored refresh token for a new access token.
// A rotated refresh token replaces the old one; otherwise the old one is kept.
func (r *OAuth2Refresher) Refresh(ctx context.Context, cred models.Credential) (models.Credential, error) {
	if r.Client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.Client)
	}

	// A past, non-zero expiry forces the token source to hit the endpoint.
	stale := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       time.Unix(1, 0),
	}
	tok, err := r.Config.TokenSource(ctx, stale).Token()
	if err != nil {
		return cred, fmt.Errorf("oauth2 refresh: %w", err)
	}

	cred.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	cred.ExpiresAt = tokenExpiry(tok.Expiry)
	return cred, nil
}

// TikTokRefresher speaks the TikTok Business API refresh endpoint, which
// takes a JSON body and wraps its answer in a {"data": {...}} envelope.
type TikTokRefresher struct {
	BaseURL      string
	ClientKey    string
	ClientSecret string
	Client       *http.Client
}

type tiktokTokenRequest struct {
	ClientKey    string `json:"client_key"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Code         string `json:"code,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
}

type tiktokTokenResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	} `json:"data"`
}

// Refresh posts the stored refresh token and returns the rotated pair.
func (r *TikTokRefresher) Refresh(ctx context.Context, cred models.Credential) (models.Credential, error) {
	resp, err := tiktokToken(ctx, r.Client, r.BaseURL+"/open_api/v1.3/oauth/refresh_token/", tiktokTokenRequest{
		ClientKey:    r.ClientKey,
		ClientSecret: r.ClientSecret,
		GrantType:    "refresh_token",
		RefreshToken: cred.RefreshToken,
	})
	if err != nil {
		return cred, err
	}
	cred.AccessToken = resp.Data.AccessToken
	if resp.Data.RefreshToken != "" {
		cred.RefreshToken = resp.Data.RefreshToken
	}
	cred.ExpiresAt = expiresIn(resp.Data.ExpiresIn)
	return cred, nil
}

// tiktokToken performs one call against a TikTok token endpoint.
func tiktokToken(ctx context.Context, client *http.Client, endpoint string, body tiktokTokenRequest) (*tiktokTokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("tiktok token marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tiktok token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := doToken(client, req)
	if err != nil {
		return nil, fmt.Errorf("tiktok token: %w", err)
	}

	var out tiktokTokenResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("tiktok token unmarshal: %w", err)
	}
	if out.Code != 0 || out.Data.AccessToken == "" {
		return nil, fmt.Errorf("tiktok token rejected (code %d): %s", out.Code, out.Message)
	}
	return &out, nil
}

// MetaExtender exchanges a valid Facebook/Instagram token for a fresh
// long-lived one (grant_type=fb_exchange_token). It cannot revive an
// expired token.
type MetaExtender struct {
	BaseURL   string
	Version   string
	AppID     string
	AppSecret string
	Client    *http.Client
}

type metaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Refresh implements Refresher for use as an extender.
func (m *MetaExtender) Refresh(ctx context.Context, cred models.Credential) (models.Credential, error) {
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", m.AppID)
	q.Set("client_secret", m.AppSecret)
	q.Set("fb_exchange_token", cred.AccessToken)
	endpoint := fmt.Sprintf("%s/%s/oauth/access_token?%s", m.BaseURL, m.Version, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return cred, fmt.Errorf("meta exchange request: %w", err)
	}
	body, err := doToken(m.Client, req)
	if err != nil {
		return cred, fmt.Errorf("meta exchange: %w", err)
	}

	var out metaTokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return cred, fmt.Errorf("meta exchange unmarshal: %w", err)
	}
	if out.AccessToken == "" {
		return cred, fmt.Errorf("meta exchange: no access_token in %s", truncate(body))
	}

	lifetime := time.Duration(out.ExpiresIn) * time.Second
	if out.ExpiresIn <= 0 {
		lifetime = metaDefaultLifetime
	}
	cred.AccessToken = out.AccessToken
	cred.ExpiresAt = time.Now().Add(lifetime).UTC()
	return cred, nil
}

// doToken sends req and returns the body of a 200 response.
func doToken(client *http.Client, req *http.Request) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body))
	}
	return body, nil
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
