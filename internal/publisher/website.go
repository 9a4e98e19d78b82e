package publisher

import (
	"context"
	"fmt"
	"html"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"crosspost/internal/markdown"
	"crosspost/internal/media"
	"crosspost/internal/models"
	"crosspost/internal/slug"
	"crosspost/internal/storage"
)

// Website publishes an article to a WordPress-compatible REST API using
// an application password. The description is Markdown. Images are
// uploaded to the media library; the first becomes the featured image and
// the rest are appended to the body.
type Website struct {
	tokens TokenSource
	api    api
}

func NewWebsite(tokens TokenSource, client *http.Client) *Website {
	return &Website{tokens: tokens, api: api{client: client}}
}

func (w *Website) Name() models.Destination { return models.DestinationWebsite }
func (w *Website) VideoOnly() bool          { return false }

func (w *Website) Publish(ctx context.Context, c Caption, paths []string) models.Outcome {
	start := time.Now()
	id, err := w.publish(ctx, c, paths)
	return finish(ctx, w.Name(), start, id, err)
}

type wpMedia struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
}

type wpPost struct {
	Title         string `json:"title"`
	Slug          string `json:"slug,omitempty"`
	Content       string `json:"content"`
	Status        string `json:"status"`
	FeaturedMedia int64  `json:"featured_media,omitempty"`
}

func (w *Website) publish(ctx context.Context, c Caption, paths []string) (string, error) {
	title := c.Title()
	if title == "" {
		return "", skip("website requires a title")
	}

	cred, err := w.tokens.Valid(ctx, w.Name())
	if err != nil {
		return "", err
	}
	site := strings.TrimRight(cred.SiteURL, "/")

	images, _ := media.Split(paths)
	uploaded := make([]wpMedia, 0, len(images))
	for _, img := range images {
		m, err := w.uploadMedia(ctx, cred, site, img)
		if err != nil {
			return "", err
		}
		uploaded = append(uploaded, m)
	}

	body, err := articleBody(c.Description(), uploaded)
	if err != nil {
		return "", err
	}
	post := wpPost{Title: title, Slug: slug.Generate(title), Content: body, Status: "publish"}
	if len(uploaded) > 0 {
		post.FeaturedMedia = uploaded[0].ID
	}
	req, err := jsonRequest(ctx, http.MethodPost, site+"/wp-json/wp/v2/posts", post)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(cred.Username, cred.AccessToken)

	var out struct {
		ID   int64  `json:"id"`
		Link string `json:"link"`
	}
	if err := w.api.do(req, "create post", &out); err != nil {
		return "", err
	}
	return strconv.FormatInt(out.ID, 10), nil
}

func (w *Website) uploadMedia(ctx context.Context, cred *models.Credential, site, path string) (wpMedia, error) {
	req, err := fileRequest(ctx, http.MethodPost, site+"/wp-json/wp/v2/media", path, storage.ContentType(path))
	if err != nil {
		return wpMedia{}, err
	}
	req.SetBasicAuth(cred.Username, cred.AccessToken)
	req.Header.Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(path)}))

	var out wpMedia
	if err := w.api.do(req, "upload media", &out); err != nil {
		return wpMedia{}, err
	}
	if out.ID == 0 {
		return wpMedia{}, &TransportError{Op: "upload media", Status: http.StatusCreated, Body: "no media id in answer"}
	}
	return out, nil
}

// articleBody renders the description followed by every image after the
// featured one.
func articleBody(description string, images []wpMedia) (string, error) {
	rendered, err := markdown.ToHTML(description)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(rendered)
	for i, img := range images {
		if i == 0 || img.SourceURL == "" {
			continue
		}
		fmt.Fprintf(&b, "<figure><img src=\"%s\" alt=\"\"></figure>\n", html.EscapeString(img.SourceURL))
	}
	return b.String(), nil
}
