// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store holds the PostgreSQL-backed repositories.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crosspost/internal/models"
)

// ErrAlreadyPosted is returned by MarkPosted when the post was already
// marked, so a post transitions to posted at most once.
var ErrAlreadyPosted = errors.New("post already marked as posted")

// PostStore handles post and publish outcome persistence.
type PostStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostStore creates a new PostStore with the given database connection.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db, now: time.Now}
}

const postColumns = `id, title_primary, body_primary, title_secondary, body_secondary,
       media_paths, scheduled_at, created_at, posted, posted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(r rowScanner) (*models.Post, error) {
	var (
		p     models.Post
		media []byte
	)
	if err := r.Scan(
		&p.ID, &p.TitlePrimary, &p.BodyPrimary, &p.TitleSecondary, &p.BodySecondary,
		&media, &p.ScheduledAt, &p.CreatedAt, &p.Posted, &p.PostedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(media, &p.MediaPaths); err != nil {
		return nil, fmt.Errorf("decode media_paths: %w", err)
	}
	return &p, nil
}

// Create validates and inserts a new post. A zero ID is filled in.
func (s *PostStore) Create(ctx context.Context, p *models.Post) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.MediaPaths == nil {
		p.MediaPaths = []string{}
	}
	media, err := json.Marshal(p.MediaPaths)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	p.CreatedAt = s.now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (id, title_primary, body_primary, title_secondary, body_secondary,
		                   media_paths, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.TitlePrimary, p.BodyPrimary, p.TitleSecondary, p.BodySecondary,
		media, p.ScheduledAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// FindByID retrieves a post by its UUID. Returns nil if not found.
func (s *PostStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post by id: %w", err)
	}
	return p, nil
}

// MarkPosted flips the posted flag once. A second call for the same post
// returns ErrAlreadyPosted.
func (s *PostStore) MarkPosted(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET posted = true, posted_at = $2 WHERE id = $1 AND posted = false`,
		id, s.now().UTC())
	if err != nil {
		return fmt.Errorf("mark posted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark posted: %w", err)
	}
	if n == 0 {
		return ErrAlreadyPosted
	}
	return nil
}

// ListRecent returns the newest posts first.
func (s *PostStore) ListRecent(ctx context.Context, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}
