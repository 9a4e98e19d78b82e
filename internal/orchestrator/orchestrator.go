// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package orchestrator turns one post and a destination selection into a
// set of publish attempts. It builds a slideshow when a video-only
// destination would otherwise receive still images, runs every adapter
// independently, records the outcomes and marks the post posted once.
// Posts scheduled for later are handed to a scheduler.Queue instead.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"crosspost/internal/media"
	"crosspost/internal/models"
	"crosspost/internal/publisher"
	"crosspost/internal/scheduler"
)

// ErrAlreadySubmitted is returned when a post reaches Submit a second time.
var ErrAlreadySubmitted = errors.New("post already submitted")

// PostStore is the persistence the orchestrator needs. *store.PostStore
// implements it.
type PostStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	MarkPosted(ctx context.Context, id uuid.UUID) error
	RecordOutcomes(ctx context.Context, postID uuid.UUID, outcomes []models.Outcome) error
}

// Publishers runs one destination. *publisher.Registry implements it.
type Publishers interface {
	Publish(ctx context.Context, dest models.Destination, c publisher.Caption, media []string) models.Outcome
	VideoOnly(dest models.Destination) bool
}

// Slideshows builds a video from still images. *media.Assembler
// implements it.
type Slideshows interface {
	BuildSlideshow(ctx context.Context, images []string, perImage time.Duration, audio string) (string, error)
}

// Options tune a run.
type Options struct {
	Concurrency        int
	DestinationTimeout time.Duration
	SlidePerImage      time.Duration
	SlideAudio         string
	SlideTimeout       time.Duration // bounds slideshow assembly; 0 falls back to DestinationTimeout
	Location           *time.Location
}

// Orchestrator coordinates submissions. It is safe for concurrent use.
type Orchestrator struct {
	publishers Publishers
	store      PostStore
	slides     Slideshows
	queue      scheduler.Queue
	opts       Options
	now        func() time.Time

	mu        sync.Mutex
	submitted map[uuid.UUID]bool
}

func New(publishers Publishers, store PostStore, slides Slideshows, queue scheduler.Queue, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = len(models.AllDestinations)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SlideTimeout <= 0 {
		opts.SlideTimeout = opts.DestinationTimeout
	}
	return &Orchestrator{
		publishers: publishers,
		store:      store,
		slides:     slides,
		queue:      queue,
		opts:       opts,
		now:        time.Now,
		submitted:  make(map[uuid.UUID]bool),
	}
}

// SetQueue attaches the deferred-job queue. The queue's handler usually
// calls back into RunJob, so the two are wired after construction.
func (o *Orchestrator) SetQueue(q scheduler.Queue) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = q
}

// Submit publishes post now, or defers it when ScheduledAt lies in the
// future. Exactly one of the returned Result and Ack is non-nil on success.
func (o *Orchestrator) Submit(ctx context.Context, post *models.Post, dests []models.Destination) (*models.Result, *models.Ack, error) {
	if err := o.claim(post); err != nil {
		return nil, nil, err
	}

	if !post.IsDue(o.now()) {
		ack, err := o.enqueue(ctx, post, dests)
		if err != nil {
			o.release(post.ID)
			return nil, nil, err
		}
		return nil, ack, nil
	}

	res, err := o.Run(ctx, post, dests)
	return res, nil, err
}

func (o *Orchestrator) claim(post *models.Post) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if post.Posted || o.submitted[post.ID] {
		return ErrAlreadySubmitted
	}
	o.submitted[post.ID] = true
	return nil
}

func (o *Orchestrator) release(id uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.submitted, id)
}

func (o *Orchestrator) enqueue(ctx context.Context, post *models.Post, dests []models.Destination) (*models.Ack, error) {
	o.mu.Lock()
	q := o.queue
	o.mu.Unlock()
	if q == nil {
		return nil, errors.New("orchestrator: no queue configured for scheduled posts")
	}

	at := post.ScheduledAt.In(o.opts.Location)
	job := scheduler.Job{PostID: post.ID, Destinations: dests}
	if err := q.Enqueue(ctx, at, job); err != nil {
		return nil, fmt.Errorf("orchestrator enqueue: %w", err)
	}
	scheduledTotal.Inc()
	return &models.Ack{
		PostID:       post.ID,
		ScheduledFor: at,
		Local:        at.Format("2006-01-02 15:04 MST"),
	}, nil
}

// RunJob executes a deferred job. A post that is gone or already posted
// is not run again.
func (o *Orchestrator) RunJob(ctx context.Context, job scheduler.Job) error {
	post, err := o.store.FindByID(ctx, job.PostID)
	if err != nil {
		return fmt.Errorf("orchestrator load post: %w", err)
	}
	if post == nil {
		return fmt.Errorf("orchestrator load post %s: not found", job.PostID)
	}
	if post.Posted {
		slog.Warn("scheduled post already posted, skipping", "post_id", post.ID)
		return nil
	}
	_, err = o.Run(ctx, post, job.Destinations)
	return err
}

// Run attempts every destination once and marks the post posted. Adapter
// failures end up in the result; only a failure to mark the post is
// returned as an error.
func (o *Orchestrator) Run(ctx context.Context, post *models.Post, dests []models.Destination) (*models.Result, error) {
	start := o.now()
	ctx = publisher.WithPostID(ctx, post.ID)
	log := slog.With("post_id", post.ID)
	log.Info("publish run started", "destinations", dests, "media", len(post.MediaPaths))

	caption := publisher.CaptionFor(post)
	videoMedia := o.videoMedia(ctx, post.MediaPaths, dests)

	outcomes := make([]models.Outcome, len(dests))
	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for i, dest := range dests {
		paths := post.MediaPaths
		if videoMedia != nil && o.publishers.VideoOnly(dest) {
			paths = videoMedia
		}
		g.Go(func() error {
			dctx := ctx
			if o.opts.DestinationTimeout > 0 {
				var cancel context.CancelFunc
				dctx, cancel = context.WithTimeout(ctx, o.opts.DestinationTimeout)
				defer cancel()
			}
			began := time.Now()
			out := o.publishers.Publish(dctx, dest, caption, paths)
			out.Destination = dest
			observeOutcome(out, time.Since(began))
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	result := models.NewResult(post.ID, outcomes)

	if err := o.store.RecordOutcomes(ctx, post.ID, outcomes); err != nil {
		log.Warn("recording outcomes failed", "error", err)
	}
	if err := o.store.MarkPosted(ctx, post.ID); err != nil {
		log.Error("marking post as posted failed", "error", err)
		return result, fmt.Errorf("orchestrator mark posted: %w", err)
	}

	log.Info("publish run finished",
		"done", len(result.Done),
		"failed", len(result.Failed),
		"skipped", len(result.Skipped),
		"duration", o.now().Sub(start),
	)
	return result, nil
}

// videoMedia returns the media list handed to video-only destinations, or
// nil when they should get the raw list. A slideshow is built once when
// several stills would otherwise reach a destination that needs video.
func (o *Orchestrator) videoMedia(ctx context.Context, paths []string, dests []models.Destination) []string {
	if len(paths) <= 1 || o.slides == nil {
		return nil
	}
	images, video := media.Split(paths)
	if video != "" || len(images) == 0 {
		return nil
	}
	needsVideo := false
	for _, d := range dests {
		if o.publishers.VideoOnly(d) {
			needsVideo = true
			break
		}
	}
	if !needsVideo {
		return nil
	}

	if o.opts.SlideTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.SlideTimeout)
		defer cancel()
	}
	out, err := o.slides.BuildSlideshow(ctx, images, o.opts.SlidePerImage, o.opts.SlideAudio)
	if err != nil {
		slideshowBuilds.WithLabelValues("error").Inc()
		slog.Warn("slideshow failed, using first media item", "error", err, "images", len(images))
		return paths[:1]
	}
	slideshowBuilds.WithLabelValues("ok").Inc()
	slog.Info("slideshow built", "path", out, "images", len(images))
	return []string{out}
}
