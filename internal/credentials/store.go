// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package credentials manages per-destination OAuth-style credentials:
// loading and saving them as JSON files, deriving their expiry status,
// refreshing them through each destination's token endpoint, and running
// the interactive authorization code exchange that creates them.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"crosspost/internal/models"
)

// Refresher obtains a new access token for a credential. Implementations
// return a copy with the new token data; they never persist anything.
type Refresher interface {
	Refresh(ctx context.Context, cred models.Credential) (models.Credential, error)
}

// Options configures a Store.
type Options struct {
	Dir      string
	WarnLead time.Duration

	// Refreshers are consulted when a token with a refresh token is due.
	Refreshers map[models.Destination]Refresher

	// RefreshLeads switches a destination to the "soon" policy: refresh once
	// now+lead reaches the expiry instead of waiting for the expiry itself.
	RefreshLeads map[models.Destination]time.Duration

	// Extenders renew still-valid tokens that have no refresh token (Meta
	// long-lived page tokens). They are only used by Maintain.
	Extenders   map[models.Destination]Refresher
	ExtendEvery time.Duration

	Now func() time.Time
}

// Store is the credential store. All methods are safe for concurrent use.
type Store struct {
	dir         string
	warnLead    time.Duration
	refreshers  map[models.Destination]Refresher
	leads       map[models.Destination]time.Duration
	extenders   map[models.Destination]Refresher
	extendEvery time.Duration
	now         func() time.Time

	mu    sync.Mutex
	locks map[models.Destination]*sync.Mutex
	group singleflight.Group
}

// StatusReport describes one destination's credential for the ops endpoint.
type StatusReport struct {
	Destination models.Destination `json:"destination"`
	Status      models.TokenStatus `json:"status"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`
	Refreshable bool               `json:"refreshable"`
}

// New creates a Store rooted at opts.Dir, creating the directory if needed.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("credentials: directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("credentials mkdir: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ExtendEvery <= 0 {
		opts.ExtendEvery = 24 * time.Hour
	}
	return &Store{
		dir:         opts.Dir,
		warnLead:    opts.WarnLead,
		refreshers:  orEmpty(opts.Refreshers),
		leads:       opts.RefreshLeads,
		extenders:   orEmpty(opts.Extenders),
		extendEvery: opts.ExtendEvery,
		now:         opts.Now,
		locks:       make(map[models.Destination]*sync.Mutex),
	}, nil
}

func orEmpty(m map[models.Destination]Refresher) map[models.Destination]Refresher {
	if m == nil {
		return map[models.Destination]Refresher{}
	}
	return m
}

// lock returns the write lock for one destination's file.
func (s *Store) lock(dest models.Destination) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[dest]
	if !ok {
		l = &sync.Mutex{}
		s.locks[dest] = l
	}
	return l
}

// Load returns the stored credential for dest. A missing file yields an
// error wrapping ErrMissing.
func (s *Store) Load(dest models.Destination) (*models.Credential, error) {
	return s.readFile(dest)
}

// Save validates and persists cred, replacing any previous credential.
func (s *Store) Save(cred *models.Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	l := s.lock(cred.Destination)
	l.Lock()
	defer l.Unlock()

	cred.UpdatedAt = s.now().UTC()
	return s.writeFile(cred)
}

// SeedIfMissing saves cred only when no credential exists yet. It reports
// whether anything was written.
func (s *Store) SeedIfMissing(cred *models.Credential) (bool, error) {
	l := s.lock(cred.Destination)
	l.Lock()
	defer l.Unlock()

	if _, err := s.readFile(cred.Destination); !errors.Is(err, ErrMissing) {
		return false, nil
	}
	if err := cred.Validate(); err != nil {
		return false, err
	}
	cred.UpdatedAt = s.now().UTC()
	return true, s.writeFile(cred)
}

// Status derives the token status for dest from its stored expiry.
// Unreadable or invalid files report missing.
func (s *Store) Status(dest models.Destination) models.TokenStatus {
	cred, err := s.readFile(dest)
	if err != nil {
		return models.TokenMissing
	}
	return cred.StatusAt(s.now(), s.warnLead)
}

// StatusAll reports every supported destination in display order.
func (s *Store) StatusAll() []StatusReport {
	reports := make([]StatusReport, 0, len(models.AllDestinations))
	for _, dest := range models.AllDestinations {
		r := StatusReport{Destination: dest, Status: models.TokenMissing}
		if cred, err := s.readFile(dest); err == nil {
			r.Status = cred.StatusAt(s.now(), s.warnLead)
			r.Refreshable = cred.RefreshToken != "" && s.refreshers[dest] != nil
			if cred.Expires() {
				exp := cred.ExpiresAt
				r.ExpiresAt = &exp
			}
		}
		reports = append(reports, r)
	}
	return reports
}

// needsRefresh applies the destination's refresh policy.
func (s *Store) needsRefresh(cred *models.Credential, now time.Time) bool {
	if !cred.Expires() {
		return false
	}
	lead := s.leads[cred.Destination]
	return !now.Add(lead).Before(cred.ExpiresAt)
}

// Valid returns a usable credential for dest, refreshing it first when the
// destination's policy says it is due. It never returns a credential that is
// already expired: missing, terminally expired, and failed refreshes all
// surface as *AuthError.
func (s *Store) Valid(ctx context.Context, dest models.Destination) (*models.Credential, error) {
	cred, err := s.readFile(dest)
	if errors.Is(err, ErrMissing) {
		return nil, &AuthError{Destination: dest, Reason: "run the authorization flow", ReauthRequired: true, Err: ErrMissing}
	}
	if err != nil {
		return nil, &AuthError{Destination: dest, Reason: "credential unreadable", Err: err}
	}

	if !s.needsRefresh(cred, s.now()) {
		return cred, nil
	}
	return s.refresh(ctx, dest)
}

// ValidToken returns just the access token of Valid.
func (s *Store) ValidToken(ctx context.Context, dest models.Destination) (string, error) {
	cred, err := s.Valid(ctx, dest)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// RefreshIfNeeded refreshes dest when its policy says the token is due.
// Destinations with nothing stored are ignored.
func (s *Store) RefreshIfNeeded(ctx context.Context, dest models.Destination) error {
	_, err := s.Valid(ctx, dest)
	var authErr *AuthError
	if errors.As(err, &authErr) && errors.Is(authErr.Err, ErrMissing) {
		return nil
	}
	return err
}

// refresh runs one refresh per destination at a time; concurrent callers
// share the in-flight result.
func (s *Store) refresh(ctx context.Context, dest models.Destination) (*models.Credential, error) {
	v, err, _ := s.group.Do(string(dest), func() (any, error) {
		l := s.lock(dest)
		l.Lock()
		defer l.Unlock()

		// Re-read under the lock: another process may have refreshed already.
		cred, err := s.readFile(dest)
		if err != nil {
			return nil, &AuthError{Destination: dest, Reason: "credential unreadable", Err: err}
		}
		now := s.now()
		if !s.needsRefresh(cred, now) {
			return cred, nil
		}

		expired := cred.ExpiredAt(now)
		r := s.refreshers[dest]
		if cred.RefreshToken == "" || r == nil {
			if !expired {
				// "soon" policy without a way to refresh: still usable.
				return cred, nil
			}
			return nil, reauth(dest, "token expired at %s and cannot be refreshed", cred.ExpiresAt.Format(time.RFC3339))
		}

		next, err := r.Refresh(ctx, *cred)
		if err != nil {
			slog.Warn("credential refresh failed", "destination", dest, "error", err)
			return nil, &AuthError{Destination: dest, Reason: "token refresh failed", Err: err}
		}
		next.Destination = dest
		if next.RefreshToken == "" {
			next.RefreshToken = cred.RefreshToken
		}
		next.UpdatedAt = now.UTC()
		if err := next.Validate(); err != nil {
			return nil, &AuthError{Destination: dest, Reason: "refreshed credential invalid", Err: err}
		}
		if err := s.writeFile(&next); err != nil {
			return nil, &AuthError{Destination: dest, Reason: "persist refreshed token", Err: err}
		}

		slog.Info("credential refreshed", "destination", dest, "expires_at", next.ExpiresAt)
		return &next, nil
	})
	if err != nil {
		return nil, err
	}
	cred := *(v.(*models.Credential))
	return &cred, nil
}

// Maintain is the periodic credential job: it refreshes every destination
// whose policy says it is due, extends long-lived tokens that have an
// extender, and logs tokens approaching expiry.
func (s *Store) Maintain(ctx context.Context) {
	for _, dest := range models.AllDestinations {
		cred, err := s.readFile(dest)
		if err != nil {
			continue
		}
		now := s.now()

		switch cred.StatusAt(now, s.warnLead) {
		case models.TokenExpired:
			if cred.RefreshToken == "" {
				slog.Warn("credential expired; re-authorization required", "destination", dest)
				continue
			}
		case models.TokenWarn:
			slog.Warn("credential expires soon", "destination", dest, "expires_at", cred.ExpiresAt)
		}

		if cred.RefreshToken != "" {
			if err := s.RefreshIfNeeded(ctx, dest); err != nil {
				slog.Error("scheduled credential refresh failed", "destination", dest, "error", err)
			}
			continue
		}

		if ext, ok := s.extenders[dest]; ok && !cred.ExpiredAt(now) && now.Sub(cred.UpdatedAt) >= s.extendEvery {
			if err := s.extend(ctx, dest, ext); err != nil {
				slog.Error("credential extension failed", "destination", dest, "error", err)
			}
		}
	}
}

// extend swaps a still-valid token for a fresh long-lived one.
func (s *Store) extend(ctx context.Context, dest models.Destination, ext Refresher) error {
	l := s.lock(dest)
	l.Lock()
	defer l.Unlock()

	cred, err := s.readFile(dest)
	if err != nil {
		return err
	}
	if cred.ExpiredAt(s.now()) {
		return reauth(dest, "token expired before it could be extended")
	}
	next, err := ext.Refresh(ctx, *cred)
	if err != nil {
		return fmt.Errorf("extend %s: %w", dest, err)
	}
	next.Destination = dest
	next.UpdatedAt = s.now().UTC()
	if err := next.Validate(); err != nil {
		return err
	}
	if err := s.writeFile(&next); err != nil {
		return err
	}
	slog.Info("credential extended", "destination", dest, "expires_at", next.ExpiresAt)
	return nil
}
