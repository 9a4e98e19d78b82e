// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for
// crosspost. It groups the post, credential and OAuth endpoints behind a
// shared JSON API middleware stack.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crosspost/internal/handlers"
	"crosspost/internal/middleware"
)

// New creates and returns the configured Chi router. submitLimit may be
// nil, in which case post submission is not rate limited.
func New(posts *handlers.Posts, creds *handlers.Credentials, submitLimit *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	// Operational endpoints.
	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIHeaders)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", posts.List)
			r.Get("/{id}", posts.Get)
			r.Group(func(r chi.Router) {
				if submitLimit != nil {
					r.Use(submitLimit.Middleware)
				}
				r.Post("/", posts.Submit)
			})
		})

		r.Get("/credentials", creds.Status)

		// OAuth consent round trip, one pair per interactive destination.
		r.Route("/oauth/{destination}", func(r chi.Router) {
			r.Get("/login", creds.Login)
			r.Get("/callback", creds.Callback)
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
