// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router tests verify the HTTP routing configuration, middleware
// chains, and the health endpoint.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"crosspost/internal/cache"
	"crosspost/internal/credentials"
	"crosspost/internal/handlers"
	"crosspost/internal/middleware"
	"crosspost/internal/models"
)

type emptyRepo struct{}

func (emptyRepo) Create(_ context.Context, p *models.Post) error {
	p.ID = uuid.New()
	return nil
}
func (emptyRepo) FindByID(context.Context, uuid.UUID) (*models.Post, error) { return nil, nil }
func (emptyRepo) ListRecent(context.Context, int) ([]models.Post, error)    { return nil, nil }
func (emptyRepo) ListOutcomes(context.Context, uuid.UUID) ([]models.Outcome, error) {
	return nil, nil
}

type noopSubmitter struct{}

func (noopSubmitter) Submit(_ context.Context, post *models.Post, _ []models.Destination) (*models.Result, *models.Ack, error) {
	return models.NewResult(post.ID, nil), nil, nil
}

func testRouter(t *testing.T, limit int) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store, err := credentials.New(credentials.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	posts := handlers.NewPosts(emptyRepo{}, noopSubmitter{}, t.TempDir(), time.UTC)
	creds := handlers.NewCredentials(store, cache.NewStateStore(client, 0), nil)

	var rl *middleware.RateLimiter
	if limit > 0 {
		rl = middleware.NewRateLimiter(client, "submit", limit, time.Minute)
	}
	return New(posts, creds, rl)
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/health", nil)

	healthHandler(w, r)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("content-type: got %q, want %q", ct, "application/json")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field: got %q, want %q", body["status"], "ok")
	}
}

func TestRoutes(t *testing.T) {
	h := testRouter(t, 0)

	tests := []struct {
		method, path string
		want         int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/posts", http.StatusOK},
		{"GET", "/posts/" + uuid.NewString(), http.StatusNotFound},
		{"GET", "/credentials", http.StatusOK},
		{"GET", "/oauth/twitter/login", http.StatusNotFound},
		{"GET", "/nope", http.StatusNotFound},
		{"DELETE", "/posts", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("got %d, want %d", rec.Code, tt.want)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("every response should carry a request id")
			}
		})
	}
}

func TestAPIRoutesSendSecurityHeaders(t *testing.T) {
	h := testRouter(t, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/credentials", nil))

	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control: %q", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options: %q", got)
	}
}

func TestSubmitIsRateLimited(t *testing.T) {
	h := testRouter(t, 2)
	body := `{"title_primary":"T","body_primary":"B","destinations":["twitter"]}`

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/posts", strings.NewReader(body))
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: got %d, want %d", i+1, rec.Code, want)
		}
	}

	// Reads are not limited.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/posts", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("list after limit: got %d", rec.Code)
	}
}
