package publisher

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"crosspost/internal/media"
	"crosspost/internal/models"
	"crosspost/internal/storage"
)

const maxYouTubeTitle = 100

// YouTube uploads one video through the Data API v3 resumable protocol:
// a metadata POST opens an upload session, the binary is PUT to the
// session URL, and the answer carries the video id.
type YouTube struct {
	baseURL string
	tokens  TokenSource
	api     api
}

func NewYouTube(baseURL string, tokens TokenSource, client *http.Client) *YouTube {
	return &YouTube{baseURL: baseURL, tokens: tokens, api: api{client: client}}
}

func (y *YouTube) Name() models.Destination { return models.DestinationYouTube }
func (y *YouTube) VideoOnly() bool          { return true }

func (y *YouTube) Publish(ctx context.Context, c Caption, paths []string) models.Outcome {
	start := time.Now()
	id, err := y.publish(ctx, c, paths)
	return finish(ctx, y.Name(), start, id, err)
}

type youtubeSnippet struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type youtubeVideo struct {
	ID      string         `json:"id,omitempty"`
	Snippet youtubeSnippet `json:"snippet"`
	Status  struct {
		PrivacyStatus   string `json:"privacyStatus,omitempty"`
		UploadStatus    string `json:"uploadStatus,omitempty"`
		FailureReason   string `json:"failureReason,omitempty"`
		RejectionReason string `json:"rejectionReason,omitempty"`
	} `json:"status"`
}

// youtubeTitle applies the title fallbacks: the caption title, else the
// start of the description, else a fixed placeholder.
func youtubeTitle(c Caption) string {
	if t := c.Title(); t != "" {
		return truncateRunes(t, maxYouTubeTitle)
	}
	if d := c.Description(); d != "" {
		return string([]rune(d)[:min(50, len([]rune(d)))])
	}
	return "Video"
}

func (y *YouTube) publish(ctx context.Context, c Caption, paths []string) (string, error) {
	_, video := media.Split(paths)
	if video == "" {
		return "", skip("youtube requires a video")
	}
	info, err := os.Stat(video)
	if err != nil {
		return "", fmt.Errorf("stat video: %w", err)
	}

	cred, err := y.tokens.Valid(ctx, y.Name())
	if err != nil {
		return "", err
	}
	bearer := "Bearer " + cred.AccessToken
	contentType := storage.ContentType(video)

	up := newUpload(y.Name())
	if err := up.advance(StateUploading); err != nil {
		return "", err
	}

	meta := youtubeVideo{Snippet: youtubeSnippet{Title: youtubeTitle(c), Description: c.Description()}}
	meta.Status.PrivacyStatus = "public"
	req, err := jsonRequest(ctx, http.MethodPost,
		y.baseURL+"/upload/youtube/v3/videos?uploadType=resumable&part=snippet,status", meta)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", bearer)
	req.Header.Set("X-Upload-Content-Type", contentType)
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(info.Size(), 10))

	header, _, err := y.api.send(req, "open upload session")
	if err != nil {
		return "", err
	}
	session := header.Get("Location")
	if session == "" {
		return "", &TransportError{Op: "open upload session", Status: http.StatusOK, Body: "no Location header"}
	}

	put, err := fileRequest(ctx, http.MethodPut, session, video, contentType)
	if err != nil {
		return "", err
	}
	put.Header.Set("Authorization", bearer)
	var out youtubeVideo
	if err := y.api.do(put, "upload video", &out); err != nil {
		return "", err
	}
	if err := up.advance(StateProcessing); err != nil {
		return "", err
	}

	switch out.Status.UploadStatus {
	case "failed", "rejected", "deleted":
		reason := out.Status.FailureReason
		if reason == "" {
			reason = out.Status.RejectionReason
		}
		return "", up.fail(out.Status.UploadStatus, reason)
	}
	if out.ID == "" {
		return "", up.fail("error", "upload answer carries no video id")
	}
	if err := up.advance(StateReady); err != nil {
		return "", err
	}
	if err := up.advance(StatePublished); err != nil {
		return "", err
	}
	return out.ID, nil
}
