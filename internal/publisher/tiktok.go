package publisher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"crosspost/internal/media"
	"crosspost/internal/models"
)

// TikTok publishes one video through the TikTok Business API: a multipart
// upload returns a video id which a second call posts with the caption.
type TikTok struct {
	baseURL string
	tokens  TokenSource
	api     api
}

func NewTikTok(baseURL string, tokens TokenSource, client *http.Client) *TikTok {
	return &TikTok{baseURL: baseURL, tokens: tokens, api: api{client: client}}
}

func (t *TikTok) Name() models.Destination { return models.DestinationTikTok }
func (t *TikTok) VideoOnly() bool          { return true }

func (t *TikTok) Publish(ctx context.Context, c Caption, paths []string) models.Outcome {
	start := time.Now()
	id, err := t.publish(ctx, c, paths)
	return finish(ctx, t.Name(), start, id, err)
}

// tiktokEnvelope is the response wrapper of every Business API call. HTTP
// 200 with a non-zero code is still a failure.
type tiktokEnvelope[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      T      `json:"data"`
}

func (e tiktokEnvelope[T]) check(op string) error {
	if e.Code != 0 {
		return &TransportError{
			Op:     op,
			Status: http.StatusOK,
			Body:   fmt.Sprintf("code %d: %s (request %s)", e.Code, e.Message, e.RequestID),
		}
	}
	return nil
}

func (t *TikTok) publish(ctx context.Context, c Caption, paths []string) (string, error) {
	_, video := media.Split(paths)
	if video == "" {
		return "", skip("tiktok requires a video")
	}

	cred, err := t.tokens.Valid(ctx, t.Name())
	if err != nil {
		return "", err
	}

	up := newUpload(t.Name())
	if err := up.advance(StateUploading); err != nil {
		return "", err
	}

	req, err := multipartRequest(ctx, t.baseURL+"/open_api/v1.3/media/upload/", "video_file", video, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Access-Token", cred.AccessToken)
	var uploaded tiktokEnvelope[struct {
		VideoID string `json:"video_id"`
	}]
	if err := t.api.do(req, "upload video", &uploaded); err != nil {
		return "", err
	}
	if err := uploaded.check("upload video"); err != nil {
		return "", err
	}
	if err := up.advance(StateProcessing); err != nil {
		return "", err
	}
	if uploaded.Data.VideoID == "" {
		return "", up.fail("error", "upload answer carries no video_id")
	}
	if err := up.advance(StateReady); err != nil {
		return "", err
	}

	req, err = jsonRequest(ctx, http.MethodPost, t.baseURL+"/open_api/v1.3/post/create/", map[string]string{
		"business_id": cred.BusinessID,
		"video_id":    uploaded.Data.VideoID,
		"caption":     c.Combined(),
	})
	if err != nil {
		return "", err
	}
	req.Header.Set("Access-Token", cred.AccessToken)
	var posted tiktokEnvelope[struct {
		ShareID string `json:"share_id"`
		ItemID  string `json:"item_id"`
	}]
	if err := t.api.do(req, "create post", &posted); err != nil {
		return "", err
	}
	if err := posted.check("create post"); err != nil {
		return "", err
	}
	if err := up.advance(StatePublished); err != nil {
		return "", err
	}

	if posted.Data.ItemID != "" {
		return posted.Data.ItemID, nil
	}
	if posted.Data.ShareID != "" {
		return posted.Data.ShareID, nil
	}
	return uploaded.Data.VideoID, nil
}
