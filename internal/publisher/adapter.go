// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package publisher holds one adapter per publishing destination. Each
// adapter speaks its destination's upload and publish protocol and reports
// a models.Outcome; errors never escape an adapter. The Registry selects
// adapters by destination.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"crosspost/internal/config"
	"crosspost/internal/models"
	"crosspost/internal/storage"
)

// Adapter publishes a caption and media to one destination.
type Adapter interface {
	// Name returns the destination this adapter serves.
	Name() models.Destination

	// VideoOnly reports whether the destination accepts nothing but video,
	// which makes the orchestrator build a slideshow from still images.
	VideoOnly() bool

	// Publish makes one attempt. It never panics on API failures and
	// always returns an outcome.
	Publish(ctx context.Context, c Caption, media []string) models.Outcome
}

// TokenSource hands out usable credentials. *credentials.Store implements it.
type TokenSource interface {
	Valid(ctx context.Context, dest models.Destination) (*models.Credential, error)
}

// Deps are the collaborators shared by all adapters.
type Deps struct {
	Config *config.Config
	Tokens TokenSource
	Host   storage.Host
	Client *http.Client
}

// Registry manages the available adapters.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.Destination]Adapter
}

// NewRegistry creates a registry holding an adapter for every destination.
func NewRegistry(d Deps) *Registry {
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: d.Config.HTTPTimeout}
	}
	poll := Poller{Interval: d.Config.PollInterval, MaxAttempts: d.Config.PollMaxAttempts}
	graph := d.Config.GraphBaseURL + "/" + d.Config.GraphVersion
	host := d.Host
	if host == nil {
		host = noHost{}
	}

	r := &Registry{adapters: make(map[models.Destination]Adapter)}
	r.Register(NewTwitter(d.Config.TwitterBaseURL, d.Tokens, client))
	r.Register(NewFacebook(graph, d.Tokens, host, client, poll))
	r.Register(NewInstagram(graph, d.Tokens, host, client, poll))
	r.Register(NewYouTube(d.Config.YouTubeBaseURL, d.Tokens, client))
	r.Register(NewLinkedIn(d.Config.LinkedInBaseURL, d.Tokens, client, poll))
	r.Register(NewTikTok(d.Config.TikTokBaseURL, d.Tokens, client))
	r.Register(NewWebsite(d.Tokens, client))
	return r
}

// Register adds or replaces the adapter for a.Name().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns the adapter for dest.
func (r *Registry) Get(dest models.Destination) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[dest]
	return a, ok
}

// Available lists the registered destinations in display order.
func (r *Registry) Available() []models.Destination {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Destination
	for _, d := range models.AllDestinations {
		if _, ok := r.adapters[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// VideoOnly reports whether dest's adapter only accepts video.
func (r *Registry) VideoOnly(dest models.Destination) bool {
	a, ok := r.Get(dest)
	return ok && a.VideoOnly()
}

// Publish runs dest's adapter. A panic inside the adapter is recovered and
// reported as a failed outcome so sibling destinations are unaffected.
func (r *Registry) Publish(ctx context.Context, dest models.Destination, c Caption, media []string) (out models.Outcome) {
	a, ok := r.Get(dest)
	if !ok {
		return models.Failed(dest, models.KindValidation, "no adapter registered")
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger(ctx, dest).Error("adapter panic", "panic", rec)
			out = models.Failed(dest, models.KindTransport, fmt.Sprintf("internal error: %v", rec))
		}
	}()
	return a.Publish(ctx, c, media)
}

// ---------- Logging ----------

type postIDKey struct{}

// WithPostID tags ctx so adapter logs carry the post id.
func WithPostID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, postIDKey{}, id)
}

func logger(ctx context.Context, dest models.Destination) *slog.Logger {
	l := slog.With("destination", dest)
	if id, ok := ctx.Value(postIDKey{}).(uuid.UUID); ok {
		l = l.With("post_id", id)
	}
	return l
}

// finish converts an adapter's result into an outcome and logs it.
func finish(ctx context.Context, dest models.Destination, start time.Time, remoteID string, err error) models.Outcome {
	log := logger(ctx, dest)
	if err != nil {
		o := outcomeFromError(dest, err)
		if o.Status == models.OutcomeSkipped {
			log.Info("publish skipped", "reason", o.Reason)
		} else {
			log.Warn("publish failed", "kind", o.Kind, "error", err, "duration", time.Since(start))
		}
		return o
	}
	log.Info("published", "remote_id", remoteID, "duration", time.Since(start))
	return models.Succeeded(dest, remoteID)
}

// noHost stands in when neither object storage nor a public base URL is set.
type noHost struct{}

func (noHost) PublicURL(context.Context, string) (string, error) {
	return "", fmt.Errorf("no public media host configured (set S3_* or PUBLIC_BASE_URL)")
}
