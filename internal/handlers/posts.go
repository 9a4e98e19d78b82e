// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"crosspost/internal/models"
	"crosspost/internal/orchestrator"
)

// PostRepository is the persistence the post handlers need.
// *store.PostStore implements it.
type PostRepository interface {
	Create(ctx context.Context, p *models.Post) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	ListRecent(ctx context.Context, limit int) ([]models.Post, error)
	ListOutcomes(ctx context.Context, postID uuid.UUID) ([]models.Outcome, error)
}

// Submitter hands a stored post to the publish pipeline.
// *orchestrator.Orchestrator implements it.
type Submitter interface {
	Submit(ctx context.Context, post *models.Post, dests []models.Destination) (*models.Result, *models.Ack, error)
}

// Posts groups the post submission and history handlers.
type Posts struct {
	repo      PostRepository
	submitter Submitter
	uploadDir string
	loc       *time.Location
}

// NewPosts creates the post handler group. Media names in requests are
// resolved against uploadDir; schedule times without an offset are read
// in loc.
func NewPosts(repo PostRepository, submitter Submitter, uploadDir string, loc *time.Location) *Posts {
	if loc == nil {
		loc = time.UTC
	}
	return &Posts{repo: repo, submitter: submitter, uploadDir: uploadDir, loc: loc}
}

type submitRequest struct {
	TitlePrimary   string   `json:"title_primary"`
	BodyPrimary    string   `json:"body_primary"`
	TitleSecondary string   `json:"title_secondary"`
	BodySecondary  string   `json:"body_secondary"`
	Media          []string `json:"media"`
	Destinations   []string `json:"destinations"`
	ScheduledAt    string   `json:"scheduled_at"`
}

type postDetail struct {
	Post     *models.Post     `json:"post"`
	Outcomes []models.Outcome `json:"outcomes"`
}

// Submit handles POST /posts. The post is stored first, then published
// immediately (200 with the result) or deferred (202 with the ack).
func (h *Posts) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if msg := validateText(req.TitlePrimary, req.BodyPrimary, req.TitleSecondary, req.BodySecondary); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	dests, msg := validateDestinations(req.Destinations)
	if msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	paths, msg := resolveMedia(h.uploadDir, req.Media)
	if msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	scheduled, err := orchestrator.ParseSchedule(req.ScheduledAt, h.loc)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	post := &models.Post{
		TitlePrimary:   req.TitlePrimary,
		BodyPrimary:    req.BodyPrimary,
		TitleSecondary: req.TitleSecondary,
		BodySecondary:  req.BodySecondary,
		MediaPaths:     paths,
		ScheduledAt:    scheduled,
	}
	if err := post.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.repo.Create(r.Context(), post); err != nil {
		slog.Error("create post failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not store post")
		return
	}

	// Publishing outlives the request so a client disconnect does not
	// cancel half-finished uploads.
	res, ack, err := h.submitter.Submit(context.WithoutCancel(r.Context()), post, dests)
	switch {
	case errors.Is(err, orchestrator.ErrAlreadySubmitted):
		writeError(w, http.StatusConflict, err.Error())
	case ack != nil:
		writeJSON(w, http.StatusAccepted, ack)
	case res != nil:
		if err != nil {
			slog.Error("post published but bookkeeping failed", "post_id", post.ID, "error", err)
		}
		writeJSON(w, http.StatusOK, res)
	default:
		slog.Error("submit post failed", "post_id", post.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not submit post")
	}
}

// List handles GET /posts?limit=N.
func (h *Posts) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	posts, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		slog.Error("list posts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list posts")
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

// Get handles GET /posts/{id}: the post plus every recorded outcome.
func (h *Posts) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	post, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		slog.Error("find post failed", "post_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load post")
		return
	}
	if post == nil {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}

	outcomes, err := h.repo.ListOutcomes(r.Context(), id)
	if err != nil {
		slog.Error("list outcomes failed", "post_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load outcomes")
		return
	}
	if outcomes == nil {
		outcomes = []models.Outcome{}
	}
	writeJSON(w, http.StatusOK, postDetail{Post: post, Outcomes: outcomes})
}
