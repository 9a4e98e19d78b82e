// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Post is one authored piece of bilingual content plus its media, as handed
// to the publish orchestrator. Everything except Posted/PostedAt is fixed
// once the row is created.
type Post struct {
	ID             uuid.UUID  `json:"id"`
	TitlePrimary   string     `json:"title_primary"`
	BodyPrimary    string     `json:"body_primary"`
	TitleSecondary string     `json:"title_secondary,omitempty"`
	BodySecondary  string     `json:"body_secondary,omitempty"`
	MediaPaths     []string   `json:"media_paths"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Posted         bool       `json:"posted"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
}

// videoExtensions lists the file extensions treated as video uploads.
var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
}

// IsVideoPath reports whether a media path has a video extension.
func IsVideoPath(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Validate checks the fields a post must carry before it can be stored.
func (p *Post) Validate() error {
	if strings.TrimSpace(p.TitlePrimary) == "" {
		return errors.New("primary title is required")
	}
	if strings.TrimSpace(p.BodyPrimary) == "" {
		return errors.New("primary body is required")
	}
	videos := 0
	for _, path := range p.MediaPaths {
		if IsVideoPath(path) {
			videos++
		}
	}
	if videos > 1 {
		return errors.New("at most one video may be attached")
	}
	return nil
}

// IsDue reports whether the post should run now rather than be deferred.
func (p *Post) IsDue(now time.Time) bool {
	return p.ScheduledAt == nil || !p.ScheduledAt.After(now)
}
