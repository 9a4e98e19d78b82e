// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared fakes for the handler tests. Nothing here
// needs PostgreSQL; Valkey-backed state runs on miniredis.
package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"crosspost/internal/models"
)

// memRepo implements PostRepository in memory.
type memRepo struct {
	mu       sync.Mutex
	posts    map[uuid.UUID]*models.Post
	order    []uuid.UUID
	outcomes map[uuid.UUID][]models.Outcome
	err      error
}

func newMemRepo() *memRepo {
	return &memRepo{posts: map[uuid.UUID]*models.Post{}, outcomes: map[uuid.UUID][]models.Outcome{}}
}

func (m *memRepo) Create(_ context.Context, p *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	p.ID = uuid.New()
	cp := *p
	m.posts[p.ID] = &cp
	m.order = append(m.order, p.ID)
	return nil
}

func (m *memRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) ListRecent(_ context.Context, limit int) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Post
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.posts[m.order[i]])
	}
	return out, m.err
}

func (m *memRepo) ListOutcomes(_ context.Context, postID uuid.UUID) ([]models.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[postID], m.err
}

// fakeSubmitter records what reached the publish pipeline.
type fakeSubmitter struct {
	mu    sync.Mutex
	calls []submitCall
	res   *models.Result
	ack   *models.Ack
	err   error
}

type submitCall struct {
	post  models.Post
	dests []models.Destination
}

func (f *fakeSubmitter) Submit(_ context.Context, post *models.Post, dests []models.Destination) (*models.Result, *models.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, submitCall{post: *post, dests: dests})
	return f.res, f.ack, f.err
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
