// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"time"
)

// TokenStatus summarises how close a credential is to expiry.
type TokenStatus string

const (
	TokenValid   TokenStatus = "valid"
	TokenWarn    TokenStatus = "warn"
	TokenExpired TokenStatus = "expired"
	TokenMissing TokenStatus = "missing"
)

// Credential is the persisted access data for a single destination.
// Which identifier fields are required depends on Destination; see Validate.
// A zero ExpiresAt means the credential does not expire.
type Credential struct {
	Destination    Destination `json:"destination"`
	AccessToken    string      `json:"accessToken"`
	RefreshToken   string      `json:"refreshToken,omitempty"`
	ExpiresAt      time.Time   `json:"expiresAt"`
	PageID         string      `json:"pageId,omitempty"`
	InstagramID    string      `json:"instagramId,omitempty"`
	OrganizationID string      `json:"organizationId,omitempty"`
	BusinessID     string      `json:"businessId,omitempty"`
	SiteURL        string      `json:"siteUrl,omitempty"`
	Username       string      `json:"username,omitempty"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Validate enforces the identifiers each destination needs to publish.
func (c *Credential) Validate() error {
	if !c.Destination.IsKnown() {
		return fmt.Errorf("credential: unknown destination %q", c.Destination)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("credential %s: accessToken is required", c.Destination)
	}

	var missing string
	switch c.Destination {
	case DestinationFacebook:
		if c.PageID == "" {
			missing = "pageId"
		}
	case DestinationInstagram:
		if c.InstagramID == "" {
			missing = "instagramId"
		}
	case DestinationLinkedIn:
		if c.OrganizationID == "" {
			missing = "organizationId"
		}
	case DestinationTikTok:
		if c.BusinessID == "" {
			missing = "businessId"
		}
	case DestinationWebsite:
		if c.SiteURL == "" {
			missing = "siteUrl"
		} else if c.Username == "" {
			missing = "username"
		}
	}
	if missing != "" {
		return fmt.Errorf("credential %s: %s is required", c.Destination, missing)
	}
	return nil
}

// Expires reports whether the credential has a finite lifetime.
func (c *Credential) Expires() bool {
	return !c.ExpiresAt.IsZero()
}

// ExpiredAt reports whether the token is unusable at now. The boundary is
// inclusive: a token expiring exactly at now is expired.
func (c *Credential) ExpiredAt(now time.Time) bool {
	return c.Expires() && !now.Before(c.ExpiresAt)
}

// StatusAt derives the token status relative to now. Tokens within warnLead
// of expiry report TokenWarn, which is informational only.
func (c *Credential) StatusAt(now time.Time, warnLead time.Duration) TokenStatus {
	switch {
	case !c.Expires():
		return TokenValid
	case c.ExpiredAt(now):
		return TokenExpired
	case !now.Add(warnLead).Before(c.ExpiresAt):
		return TokenWarn
	default:
		return TokenValid
	}
}
