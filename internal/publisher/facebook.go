// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package publisher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"crosspost/internal/media"
	"crosspost/internal/models"
	"crosspost/internal/storage"
)

// Facebook publishes to a Page through the Graph API. Media is passed by
// public URL. A video takes priority over images; several images become
// one post with the photos attached as unpublished media.
type Facebook struct {
	graphURL string // base URL including the API version
	tokens   TokenSource
	host     storage.Host
	api      api
	poll     Poller
}

func NewFacebook(graphURL string, tokens TokenSource, host storage.Host, client *http.Client, poll Poller) *Facebook {
	return &Facebook{graphURL: graphURL, tokens: tokens, host: host, api: api{client: client}, poll: poll}
}

func (f *Facebook) Name() models.Destination { return models.DestinationFacebook }
func (f *Facebook) VideoOnly() bool          { return false }

func (f *Facebook) Publish(ctx context.Context, c Caption, paths []string) models.Outcome {
	start := time.Now()
	id, err := f.publish(ctx, c, paths)
	return finish(ctx, f.Name(), start, id, err)
}

type graphID struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

func (f *Facebook) publish(ctx context.Context, c Caption, paths []string) (string, error) {
	text := c.Combined()
	images, video := media.Split(paths)
	if text == "" && len(images) == 0 && video == "" {
		return "", skip("nothing to post")
	}

	cred, err := f.tokens.Valid(ctx, f.Name())
	if err != nil {
		return "", err
	}

	switch {
	case video != "":
		return f.publishVideo(ctx, cred, text, video)
	case len(images) > 0:
		return f.publishPhotos(ctx, cred, text, images)
	default:
		return f.publishText(ctx, cred, text)
	}
}

func (f *Facebook) publishText(ctx context.Context, cred *models.Credential, text string) (string, error) {
	form := url.Values{"message": {text}, "access_token": {cred.AccessToken}}
	req, err := formRequest(ctx, f.graphURL+"/"+cred.PageID+"/feed", form)
	if err != nil {
		return "", err
	}
	var out graphID
	if err := f.api.do(req, "page feed", &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// publishPhotos uploads each image unpublished, then creates one feed post
// referencing all of them in input order.
func (f *Facebook) publishPhotos(ctx context.Context, cred *models.Credential, text string, images []string) (string, error) {
	type attachment struct {
		MediaFBID string `json:"media_fbid"`
	}
	attached := make([]attachment, 0, len(images))

	for _, img := range images {
		public, err := f.host.PublicURL(ctx, img)
		if err != nil {
			return "", fmt.Errorf("public url for %s: %w", img, err)
		}
		form := url.Values{
			"url":          {public},
			"published":    {"false"},
			"access_token": {cred.AccessToken},
		}
		req, err := formRequest(ctx, f.graphURL+"/"+cred.PageID+"/photos", form)
		if err != nil {
			return "", err
		}
		var out graphID
		if err := f.api.do(req, "upload photo", &out); err != nil {
			return "", err
		}
		attached = append(attached, attachment{MediaFBID: out.ID})
	}

	req, err := jsonRequest(ctx, http.MethodPost, f.graphURL+"/"+cred.PageID+"/feed", map[string]any{
		"message":        text,
		"attached_media": attached,
		"access_token":   cred.AccessToken,
	})
	if err != nil {
		return "", err
	}
	var out graphID
	if err := f.api.do(req, "page feed", &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

type fbVideoStatus struct {
	Status struct {
		VideoStatus string `json:"video_status"`
	} `json:"status"`
}

// publishVideo hands the Graph API a video URL and waits until the video
// has finished processing.
func (f *Facebook) publishVideo(ctx context.Context, cred *models.Credential, text, video string) (string, error) {
	up := newUpload(f.Name())
	if err := up.advance(StateUploading); err != nil {
		return "", err
	}

	public, err := f.host.PublicURL(ctx, video)
	if err != nil {
		return "", fmt.Errorf("public url for %s: %w", video, err)
	}
	form := url.Values{
		"file_url":     {public},
		"description":  {text},
		"access_token": {cred.AccessToken},
	}
	req, err := formRequest(ctx, f.graphURL+"/"+cred.PageID+"/videos", form)
	if err != nil {
		return "", err
	}
	var created graphID
	if err := f.api.do(req, "upload video", &created); err != nil {
		return "", err
	}
	if err := up.advance(StateProcessing); err != nil {
		return "", err
	}

	var failed string
	err = f.poll.Until(ctx, "facebook video", func(ctx context.Context) (bool, error) {
		q := url.Values{"fields": {"status"}, "access_token": {cred.AccessToken}}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.graphURL+"/"+created.ID+"?"+q.Encode(), nil)
		if err != nil {
			return false, err
		}
		var st fbVideoStatus
		if err := f.api.do(req, "video status", &st); err != nil {
			return false, err
		}
		switch st.Status.VideoStatus {
		case "ready":
			return true, nil
		case "error":
			failed = st.Status.VideoStatus
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return "", err
	}
	if failed != "" {
		return "", up.fail(failed, "video "+created.ID)
	}

	if err := up.advance(StateReady); err != nil {
		return "", err
	}
	if err := up.advance(StatePublished); err != nil {
		return "", err
	}
	return created.ID, nil
}
