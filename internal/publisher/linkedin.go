// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package publisher

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"crosspost/internal/media"
	"crosspost/internal/models"
	"crosspost/internal/storage"
)

const (
	maxLinkedInImages = 9

	recipeImage = "urn:li:digitalmediaRecipe:feedshare-image"
	recipeVideo = "urn:li:digitalmediaRecipe:feedshare-video"

	uploadMechanism = "com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"
)

// LinkedIn posts as an organization through the v2 UGC API. Every media
// item is registered as an asset, uploaded to the returned URL, and then
// referenced by the post. A video takes priority over images.
type LinkedIn struct {
	baseURL string
	tokens  TokenSource
	api     api
	poll    Poller
}

func NewLinkedIn(baseURL string, tokens TokenSource, client *http.Client, poll Poller) *LinkedIn {
	return &LinkedIn{baseURL: baseURL, tokens: tokens, api: api{client: client}, poll: poll}
}

func (l *LinkedIn) Name() models.Destination { return models.DestinationLinkedIn }
func (l *LinkedIn) VideoOnly() bool          { return false }

func (l *LinkedIn) Publish(ctx context.Context, c Caption, paths []string) models.Outcome {
	start := time.Now()
	id, err := l.publish(ctx, c, paths)
	return finish(ctx, l.Name(), start, id, err)
}

// ---------- Wire types ----------

type liServiceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type liRegisterRequest struct {
	RegisterUploadRequest struct {
		Recipes              []string                `json:"recipes"`
		Owner                string                  `json:"owner"`
		ServiceRelationships []liServiceRelationship `json:"serviceRelationships"`
	} `json:"registerUploadRequest"`
}

type liRegisterResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism map[string]struct {
			UploadURL string `json:"uploadUrl"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

type liText struct {
	Text string `json:"text"`
}

type liMedia struct {
	Status      string `json:"status"`
	Description liText `json:"description"`
	Media       string `json:"media"`
	Title       liText `json:"title"`
}

type liShareContent struct {
	ShareCommentary    liText    `json:"shareCommentary"`
	ShareMediaCategory string    `json:"shareMediaCategory"`
	Media              []liMedia `json:"media,omitempty"`
}

type liPost struct {
	Author          string                    `json:"author"`
	LifecycleState  string                    `json:"lifecycleState"`
	SpecificContent map[string]liShareContent `json:"specificContent"`
	Visibility      map[string]string         `json:"visibility"`
}

type liAssetStatus struct {
	Recipes []struct {
		Recipe string `json:"recipe"`
		Status string `json:"status"`
	} `json:"recipes"`
}

// ---------- Flow ----------

func (l *LinkedIn) publish(ctx context.Context, c Caption, paths []string) (string, error) {
	images, video := media.Split(paths)
	if len(images) == 0 && video == "" {
		return "", skip("linkedin requires at least one image or video")
	}

	cred, err := l.tokens.Valid(ctx, l.Name())
	if err != nil {
		return "", err
	}
	owner := "urn:li:organization:" + cred.OrganizationID

	var (
		category string
		items    []liMedia
		up       *upload
	)
	if video != "" {
		category = "VIDEO"
		var asset string
		asset, up, err = l.uploadVideo(ctx, cred, owner, video)
		if err != nil {
			return "", err
		}
		items = append(items, mediaItem(asset, video))
	} else {
		category = "IMAGE"
		if len(images) > maxLinkedInImages {
			images = images[:maxLinkedInImages]
		}
		for _, img := range images {
			asset, err := l.uploadAsset(ctx, cred, owner, recipeImage, img)
			if err != nil {
				return "", err
			}
			items = append(items, mediaItem(asset, img))
		}
	}

	post := liPost{
		Author:         owner,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]liShareContent{
			"com.linkedin.ugc.ShareContent": {
				ShareCommentary:    liText{Text: c.Combined()},
				ShareMediaCategory: category,
				Media:              items,
			},
		},
		Visibility: map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}
	req, err := jsonRequest(ctx, http.MethodPost, l.baseURL+"/v2/ugcPosts", post)
	if err != nil {
		return "", err
	}
	l.authorize(req, cred)

	header, body, err := l.api.send(req, "create post")
	if err != nil {
		return "", err
	}
	if up != nil {
		if err := up.advance(StatePublished); err != nil {
			return "", err
		}
	}
	if id := header.Get("X-RestLi-Id"); id != "" {
		return id, nil
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := decodeOptional(body, &out); err != nil {
		return "", &TransportError{Op: "create post", Status: http.StatusCreated, Body: truncateBody(body), Err: err}
	}
	return out.ID, nil
}

func mediaItem(asset, path string) liMedia {
	return liMedia{
		Status:      "READY",
		Description: liText{Text: "Uploaded via API"},
		Media:       asset,
		Title:       liText{Text: filepath.Base(path)},
	}
}

func (l *LinkedIn) authorize(req *http.Request, cred *models.Credential) {
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
}

// uploadAsset registers an asset for recipe and PUTs the file to the
// upload URL LinkedIn hands back. It returns the asset URN.
func (l *LinkedIn) uploadAsset(ctx context.Context, cred *models.Credential, owner, recipe, path string) (string, error) {
	var reg liRegisterRequest
	reg.RegisterUploadRequest.Recipes = []string{recipe}
	reg.RegisterUploadRequest.Owner = owner
	reg.RegisterUploadRequest.ServiceRelationships = []liServiceRelationship{
		{RelationshipType: "OWNER", Identifier: "urn:li:userGeneratedContent"},
	}

	req, err := jsonRequest(ctx, http.MethodPost, l.baseURL+"/v2/assets?action=registerUpload", reg)
	if err != nil {
		return "", err
	}
	l.authorize(req, cred)
	var out liRegisterResponse
	if err := l.api.do(req, "register upload", &out); err != nil {
		return "", err
	}
	uploadURL := out.Value.UploadMechanism[uploadMechanism].UploadURL
	if uploadURL == "" || out.Value.Asset == "" {
		return "", &TransportError{Op: "register upload", Status: http.StatusOK, Body: "no upload url or asset in answer"}
	}

	put, err := fileRequest(ctx, http.MethodPut, uploadURL, path, storage.ContentType(path))
	if err != nil {
		return "", err
	}
	put.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	if _, _, err := l.api.send(put, "upload asset"); err != nil {
		return "", err
	}
	return out.Value.Asset, nil
}

// uploadVideo uploads a video asset and waits until LinkedIn reports it
// available for sharing. The upload is left ready for the post to publish.
func (l *LinkedIn) uploadVideo(ctx context.Context, cred *models.Credential, owner, video string) (string, *upload, error) {
	up := newUpload(l.Name())
	if err := up.advance(StateUploading); err != nil {
		return "", nil, err
	}
	asset, err := l.uploadAsset(ctx, cred, owner, recipeVideo, video)
	if err != nil {
		return "", nil, err
	}
	if err := up.advance(StateProcessing); err != nil {
		return "", nil, err
	}

	assetID := asset[strings.LastIndex(asset, ":")+1:]
	var failed string
	err = l.poll.Until(ctx, "linkedin video asset", func(ctx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/v2/assets/"+url.PathEscape(assetID), nil)
		if err != nil {
			return false, err
		}
		l.authorize(req, cred)
		var st liAssetStatus
		if err := l.api.do(req, "asset status", &st); err != nil {
			return false, err
		}
		for _, r := range st.Recipes {
			if r.Recipe != recipeVideo {
				continue
			}
			switch r.Status {
			case "AVAILABLE":
				return true, nil
			case "CLIENT_ERROR", "SERVER_ERROR", "INCOMPLETE":
				failed = r.Status
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return "", nil, err
	}
	if failed != "" {
		return "", nil, up.fail(failed, asset)
	}
	if err := up.advance(StateReady); err != nil {
		return "", nil, err
	}
	return asset, up, nil
}
