package publisher

import (
	"context"
	"net/http"
	"time"

	"crosspost/internal/models"
)

// maxTweetRunes is the X post length limit for standard accounts.
const maxTweetRunes = 280

// Twitter posts text through the X API v2 (POST /2/tweets). Media is ignored.
type Twitter struct {
	baseURL string
	tokens  TokenSource
	api     api
}

func NewTwitter(baseURL string, tokens TokenSource, client *http.Client) *Twitter {
	return &Twitter{baseURL: baseURL, tokens: tokens, api: api{client: client}}
}

func (t *Twitter) Name() models.Destination { return models.DestinationTwitter }
func (t *Twitter) VideoOnly() bool          { return false }

func (t *Twitter) Publish(ctx context.Context, c Caption, _ []string) models.Outcome {
	start := time.Now()
	id, err := t.publish(ctx, c)
	return finish(ctx, t.Name(), start, id, err)
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (t *Twitter) publish(ctx context.Context, c Caption) (string, error) {
	text := c.Combined()
	if text == "" {
		return "", skip("empty text")
	}

	cred, err := t.tokens.Valid(ctx, t.Name())
	if err != nil {
		return "", err
	}

	req, err := jsonRequest(ctx, http.MethodPost, t.baseURL+"/2/tweets", map[string]string{
		"text": truncateRunes(text, maxTweetRunes),
	})
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	var out tweetResponse
	if err := t.api.do(req, "create tweet", &out); err != nil {
		return "", err
	}
	return out.Data.ID, nil
}
