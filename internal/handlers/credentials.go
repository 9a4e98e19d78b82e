// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"crosspost/internal/cache"
	"crosspost/internal/credentials"
	"crosspost/internal/models"
)

// CredentialStore is the part of *credentials.Store the handlers use.
type CredentialStore interface {
	StatusAll() []credentials.StatusReport
	Save(cred *models.Credential) error
}

// StateStore remembers OAuth state between login and callback.
// *cache.StateStore implements it.
type StateStore interface {
	Put(ctx context.Context, state string, p cache.PendingAuth) error
	Take(ctx context.Context, state string) (cache.PendingAuth, error)
}

// Credentials serves credential status and the interactive OAuth flows.
type Credentials struct {
	store       CredentialStore
	states      StateStore
	authorizers map[models.Destination]credentials.Authorizer
}

// NewCredentials creates the credential handler group. Destinations
// without an authorizer (Meta tokens, the website password) can only be
// seeded from configuration.
func NewCredentials(store CredentialStore, states StateStore, authorizers map[models.Destination]credentials.Authorizer) *Credentials {
	return &Credentials{store: store, states: states, authorizers: authorizers}
}

// Status handles GET /credentials.
func (h *Credentials) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.StatusAll())
}

func (h *Credentials) authorizer(w http.ResponseWriter, r *http.Request) (models.Destination, credentials.Authorizer, bool) {
	dest := models.Destination(chi.URLParam(r, "destination"))
	if !dest.IsKnown() {
		writeError(w, http.StatusNotFound, "unknown destination")
		return dest, nil, false
	}
	a, ok := h.authorizers[dest]
	if !ok {
		writeError(w, http.StatusNotFound, "destination has no interactive authorization")
		return dest, nil, false
	}
	return dest, a, true
}

// Login handles GET /oauth/{destination}/login by redirecting to the
// destination's consent page.
func (h *Credentials) Login(w http.ResponseWriter, r *http.Request) {
	dest, a, ok := h.authorizer(w, r)
	if !ok {
		return
	}

	state := uuid.NewString()
	pending := cache.PendingAuth{Destination: dest}
	if a.UsesPKCE() {
		pending.Verifier = oauth2.GenerateVerifier()
	}
	if err := h.states.Put(r.Context(), state, pending); err != nil {
		slog.Error("store oauth state failed", "destination", dest, "error", err)
		writeError(w, http.StatusInternalServerError, "could not start authorization")
		return
	}

	http.Redirect(w, r, a.AuthCodeURL(state, pending.Verifier), http.StatusFound)
}

// Callback handles GET /oauth/{destination}/callback: it consumes the
// state, exchanges the code and persists the new credential.
func (h *Credentials) Callback(w http.ResponseWriter, r *http.Request) {
	dest, a, ok := h.authorizer(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, http.StatusBadRequest, "authorization denied: "+e)
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "code and state are required")
		return
	}

	pending, err := h.states.Take(r.Context(), state)
	if errors.Is(err, cache.ErrUnknownState) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("load oauth state failed", "destination", dest, "error", err)
		writeError(w, http.StatusInternalServerError, "could not finish authorization")
		return
	}
	if pending.Destination != dest {
		writeError(w, http.StatusBadRequest, "state was issued for another destination")
		return
	}

	cred, err := a.Exchange(r.Context(), code, pending.Verifier)
	if err != nil {
		slog.Warn("oauth code exchange failed", "destination", dest, "error", err)
		writeError(w, http.StatusBadGateway, "code exchange failed")
		return
	}
	if err := h.store.Save(cred); err != nil {
		slog.Error("save credential failed", "destination", dest, "error", err)
		writeError(w, http.StatusInternalServerError, "could not save credential")
		return
	}

	slog.Info("destination authorized", "destination", dest)
	resp := map[string]any{"destination": dest, "authorized": true}
	if !cred.ExpiresAt.IsZero() {
		resp["expires_at"] = cred.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}
