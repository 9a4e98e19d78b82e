// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package publisher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crosspost/internal/media"
	"crosspost/internal/models"
	"crosspost/internal/storage"
)

// maxCarouselItems is the Instagram carousel size limit.
const maxCarouselItems = 10

// Instagram publishes through Graph API media containers: create a
// container from a public URL, wait for it when it is a video, then
// media_publish. A video becomes a Reel and takes priority over images;
// several images become a carousel.
type Instagram struct {
	graphURL string
	tokens   TokenSource
	host     storage.Host
	api      api
	poll     Poller
}

func NewInstagram(graphURL string, tokens TokenSource, host storage.Host, client *http.Client, poll Poller) *Instagram {
	return &Instagram{graphURL: graphURL, tokens: tokens, host: host, api: api{client: client}, poll: poll}
}

func (i *Instagram) Name() models.Destination { return models.DestinationInstagram }
func (i *Instagram) VideoOnly() bool          { return false }

func (i *Instagram) Publish(ctx context.Context, c Caption, paths []string) models.Outcome {
	start := time.Now()
	id, err := i.publish(ctx, c, paths)
	return finish(ctx, i.Name(), start, id, err)
}

func (i *Instagram) publish(ctx context.Context, c Caption, paths []string) (string, error) {
	images, video := media.Split(paths)
	if len(images) == 0 && video == "" {
		return "", skip("instagram requires at least one image or video")
	}

	cred, err := i.tokens.Valid(ctx, i.Name())
	if err != nil {
		return "", err
	}
	caption := c.Combined()

	var (
		containerID string
		up          *upload
	)
	switch {
	case video != "":
		containerID, up, err = i.reel(ctx, cred, caption, video)
	case len(images) > 1:
		containerID, err = i.carousel(ctx, cred, caption, images)
	default:
		containerID, err = i.image(ctx, cred, url.Values{"caption": {caption}}, images[0])
	}
	if err != nil {
		return "", err
	}

	id, err := i.mediaPublish(ctx, cred, containerID)
	if err != nil {
		return "", err
	}
	if up != nil {
		if err := up.advance(StatePublished); err != nil {
			return "", err
		}
	}
	return id, nil
}

// createContainer posts one /media container and returns its id.
func (i *Instagram) createContainer(ctx context.Context, cred *models.Credential, form url.Values) (string, error) {
	form.Set("access_token", cred.AccessToken)
	req, err := formRequest(ctx, i.graphURL+"/"+cred.InstagramID+"/media", form)
	if err != nil {
		return "", err
	}
	var out graphID
	if err := i.api.do(req, "create container", &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (i *Instagram) image(ctx context.Context, cred *models.Credential, form url.Values, path string) (string, error) {
	public, err := i.host.PublicURL(ctx, path)
	if err != nil {
		return "", fmt.Errorf("public url for %s: %w", path, err)
	}
	form.Set("image_url", public)
	return i.createContainer(ctx, cred, form)
}

func (i *Instagram) carousel(ctx context.Context, cred *models.Credential, caption string, images []string) (string, error) {
	if len(images) > maxCarouselItems {
		images = images[:maxCarouselItems]
	}
	children := make([]string, 0, len(images))
	for _, img := range images {
		id, err := i.image(ctx, cred, url.Values{"is_carousel_item": {"true"}}, img)
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}
	return i.createContainer(ctx, cred, url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
		"caption":    {caption},
	})
}

type igContainerStatus struct {
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

// reel creates a REELS container and waits until Instagram has processed
// it. The returned upload is left in the ready state.
func (i *Instagram) reel(ctx context.Context, cred *models.Credential, caption, video string) (string, *upload, error) {
	up := newUpload(i.Name())
	if err := up.advance(StateUploading); err != nil {
		return "", nil, err
	}
	public, err := i.host.PublicURL(ctx, video)
	if err != nil {
		return "", nil, fmt.Errorf("public url for %s: %w", video, err)
	}
	id, err := i.createContainer(ctx, cred, url.Values{
		"media_type": {"REELS"},
		"video_url":  {public},
		"caption":    {caption},
	})
	if err != nil {
		return "", nil, err
	}
	if err := up.advance(StateProcessing); err != nil {
		return "", nil, err
	}

	var failed *igContainerStatus
	err = i.poll.Until(ctx, "instagram container", func(ctx context.Context) (bool, error) {
		q := url.Values{"fields": {"status_code,status"}, "access_token": {cred.AccessToken}}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.graphURL+"/"+id+"?"+q.Encode(), nil)
		if err != nil {
			return false, err
		}
		var st igContainerStatus
		if err := i.api.do(req, "container status", &st); err != nil {
			return false, err
		}
		switch st.StatusCode {
		case "FINISHED":
			return true, nil
		case "ERROR", "EXPIRED":
			failed = &st
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return "", nil, err
	}
	if failed != nil {
		return "", nil, up.fail(failed.StatusCode, failed.Status)
	}
	if err := up.advance(StateReady); err != nil {
		return "", nil, err
	}
	return id, up, nil
}

func (i *Instagram) mediaPublish(ctx context.Context, cred *models.Credential, containerID string) (string, error) {
	form := url.Values{"creation_id": {containerID}, "access_token": {cred.AccessToken}}
	req, err := formRequest(ctx, i.graphURL+"/"+cred.InstagramID+"/media_publish", form)
	if err != nil {
		return "", err
	}
	var out graphID
	if err := i.api.do(req, "media publish", &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
