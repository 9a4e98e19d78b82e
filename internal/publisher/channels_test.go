package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"crosspost/internal/models"
)

// =====================================================================
// YouTube
// =====================================================================

func youtubeServer(t *testing.T, answer string) (string, *recorder) {
	t.Helper()
	var base string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", base+"/upload/session/abc")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PUT /upload/session/abc", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, answer)
	})
	srv, rec := newRecordingServer(t, mux)
	base = srv.URL
	return srv.URL, rec
}

func TestYouTubeResumableUpload(t *testing.T) {
	base, rec := youtubeServer(t, `{"id":"yt-1","status":{"uploadStatus":"uploaded"}}`)
	yt := NewYouTube(base, tokensFor(&models.Credential{Destination: models.DestinationYouTube, AccessToken: "g-tok"}), testClient())

	paths := mediaFiles(t, "clip.mp4")
	o := yt.Publish(context.Background(), launchCaption(), paths)
	requireOutcome(t, o, models.OutcomeSucceeded)
	if o.RemoteID != "yt-1" {
		t.Errorf("RemoteID: %q", o.RemoteID)
	}

	open := rec.byPath("/upload/youtube/v3/videos")
	if len(open) != 1 {
		t.Fatalf("session opens: %d", len(open))
	}
	if !strings.Contains(open[0].Query, "uploadType=resumable") {
		t.Errorf("query: %q", open[0].Query)
	}
	if got := open[0].Header.Get("X-Upload-Content-Length"); got != fmt.Sprint(len("data-clip.mp4")) {
		t.Errorf("X-Upload-Content-Length: %q", got)
	}
	if got := open[0].Header.Get("X-Upload-Content-Type"); got != "video/mp4" {
		t.Errorf("X-Upload-Content-Type: %q", got)
	}
	var meta youtubeVideo
	if err := json.Unmarshal(open[0].Body, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.Snippet.Title != "Launch" || meta.Snippet.Description != "We shipped." || meta.Status.PrivacyStatus != "public" {
		t.Errorf("metadata: %+v", meta)
	}

	put := rec.byPath("/upload/session/abc")
	if len(put) != 1 || string(put[0].Body) != "data-clip.mp4" {
		t.Errorf("upload: %+v", put)
	}
	if put[0].Header.Get("Authorization") != "Bearer g-tok" {
		t.Error("upload must carry the bearer token")
	}
}

func TestYouTubeRejectedUpload(t *testing.T) {
	base, _ := youtubeServer(t, `{"id":"yt-2","status":{"uploadStatus":"rejected","rejectionReason":"duplicate"}}`)
	yt := NewYouTube(base, tokensFor(&models.Credential{Destination: models.DestinationYouTube, AccessToken: "g"}), testClient())

	o := yt.Publish(context.Background(), launchCaption(), mediaFiles(t, "clip.mp4"))
	requireOutcome(t, o, models.OutcomeFailed)
	if o.Kind != models.KindProcessing || !strings.Contains(o.Reason, "duplicate") {
		t.Errorf("outcome: %+v", o)
	}
}

func TestYouTubeSkipsImages(t *testing.T) {
	base, rec := youtubeServer(t, `{}`)
	yt := NewYouTube(base, tokensFor(), testClient())

	o := yt.Publish(context.Background(), launchCaption(), mediaFiles(t, "a.jpg", "b.jpg"))
	requireOutcome(t, o, models.OutcomeSkipped)
	if len(rec.all()) != 0 {
		t.Error("no request expected")
	}
}

// =====================================================================
// LinkedIn
// =====================================================================

func linkedinCred() *models.Credential {
	return &models.Credential{Destination: models.DestinationLinkedIn, AccessToken: "li-tok", OrganizationID: "42"}
}

func linkedinServer(t *testing.T, assetStatus func(n int32) string) (string, *recorder) {
	t.Helper()
	var (
		base           string
		assets, checks int32
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/assets", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&assets, 1)
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"value":{"asset":"urn:li:digitalmediaAsset:A%d","uploadMechanism":{%q:{"uploadUrl":"%s/upload/%d"}}}}`,
			n, uploadMechanism, base, n))
	})
	mux.HandleFunc("PUT /upload/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /v2/assets/A1", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&checks, 1)
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"recipes":[{"recipe":%q,"status":%q}]}`, recipeVideo, assetStatus(n)))
	})
	mux.HandleFunc("POST /v2/ugcPosts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RestLi-Id", "urn:li:share:1")
		w.WriteHeader(http.StatusCreated)
	})
	srv, rec := newRecordingServer(t, mux)
	base = srv.URL
	return srv.URL, rec
}

func TestLinkedInImages(t *testing.T) {
	base, rec := linkedinServer(t, nil)
	li := NewLinkedIn(base, tokensFor(linkedinCred()), testClient(), fastPoll())

	o := li.Publish(context.Background(), launchCaption(), mediaFiles(t, "a.jpg", "b.png"))
	requireOutcome(t, o, models.OutcomeSucceeded)
	if o.RemoteID != "urn:li:share:1" {
		t.Errorf("RemoteID: %q", o.RemoteID)
	}

	regs := rec.byPath("/v2/assets")
	if len(regs) != 2 {
		t.Fatalf("registrations: %d", len(regs))
	}
	var reg liRegisterRequest
	json.Unmarshal(regs[0].Body, &reg)
	if reg.RegisterUploadRequest.Owner != "urn:li:organization:42" || reg.RegisterUploadRequest.Recipes[0] != recipeImage {
		t.Errorf("register: %+v", reg)
	}
	if regs[0].Header.Get("X-Restli-Protocol-Version") != "2.0.0" {
		t.Error("missing Rest.li protocol header")
	}
	if len(rec.byPath("/upload/1")) != 1 || len(rec.byPath("/upload/2")) != 1 {
		t.Error("each asset must be uploaded once")
	}

	posts := rec.byPath("/v2/ugcPosts")
	if len(posts) != 1 {
		t.Fatalf("posts: %d", len(posts))
	}
	var post liPost
	if err := json.Unmarshal(posts[0].Body, &post); err != nil {
		t.Fatalf("post body: %v", err)
	}
	share := post.SpecificContent["com.linkedin.ugc.ShareContent"]
	if share.ShareMediaCategory != "IMAGE" || share.ShareCommentary.Text != "Launch\n\nWe shipped." {
		t.Errorf("share: %+v", share)
	}
	if len(share.Media) != 2 || share.Media[0].Media != "urn:li:digitalmediaAsset:A1" || share.Media[1].Media != "urn:li:digitalmediaAsset:A2" {
		t.Errorf("media: %+v", share.Media)
	}
}

func TestLinkedInVideoWaitsForAsset(t *testing.T) {
	base, rec := linkedinServer(t, func(n int32) string {
		if n < 2 {
			return "PROCESSING"
		}
		return "AVAILABLE"
	})
	li := NewLinkedIn(base, tokensFor(linkedinCred()), testClient(), fastPoll())

	o := li.Publish(context.Background(), launchCaption(), mediaFiles(t, "clip.mp4", "a.jpg"))
	requireOutcome(t, o, models.OutcomeSucceeded)
	if n := len(rec.byPath("/v2/assets/A1")); n != 2 {
		t.Errorf("status checks: %d", n)
	}
	var post liPost
	json.Unmarshal(rec.byPath("/v2/ugcPosts")[0].Body, &post)
	if got := post.SpecificContent["com.linkedin.ugc.ShareContent"].ShareMediaCategory; got != "VIDEO" {
		t.Errorf("category: %q", got)
	}
}

func TestLinkedInVideoClientError(t *testing.T) {
	base, rec := linkedinServer(t, func(int32) string { return "CLIENT_ERROR" })
	li := NewLinkedIn(base, tokensFor(linkedinCred()), testClient(), fastPoll())

	o := li.Publish(context.Background(), launchCaption(), mediaFiles(t, "clip.mp4"))
	requireOutcome(t, o, models.OutcomeFailed)
	if o.Kind != models.KindProcessing {
		t.Errorf("Kind: %s", o.Kind)
	}
	if len(rec.byPath("/v2/ugcPosts")) != 0 {
		t.Error("no post expected after a failed asset")
	}
}

func TestLinkedInSkipsTextOnly(t *testing.T) {
	base, rec := linkedinServer(t, nil)
	li := NewLinkedIn(base, tokensFor(linkedinCred()), testClient(), fastPoll())

	requireOutcome(t, li.Publish(context.Background(), launchCaption(), nil), models.OutcomeSkipped)
	if len(rec.all()) != 0 {
		t.Error("no request expected")
	}
}

// =====================================================================
// TikTok
// =====================================================================

func tiktokCred() *models.Credential {
	return &models.Credential{Destination: models.DestinationTikTok, AccessToken: "tt-tok", BusinessID: "biz-7"}
}

func TestTikTokUploadAndPost(t *testing.T) {
	var gotFile string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /open_api/v1.3/media/upload/", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("video_file")
		if err != nil {
			t.Errorf("video_file: %v", err)
			writeJSON(w, http.StatusBadRequest, `{}`)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotFile = hdr.Filename + ":" + string(b)
		writeJSON(w, http.StatusOK, `{"code":0,"message":"OK","data":{"video_id":"v-1"}}`)
	})
	mux.HandleFunc("POST /open_api/v1.3/post/create/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"code":0,"message":"OK","data":{"item_id":"item-9"}}`)
	})
	srv, rec := newRecordingServer(t, mux)

	tt := NewTikTok(srv.URL, tokensFor(tiktokCred()), testClient())
	o := tt.Publish(context.Background(), launchCaption(), mediaFiles(t, "clip.mp4"))
	requireOutcome(t, o, models.OutcomeSucceeded)
	if o.RemoteID != "item-9" {
		t.Errorf("RemoteID: %q", o.RemoteID)
	}
	if gotFile != "clip.mp4:data-clip.mp4" {
		t.Errorf("uploaded file: %q", gotFile)
	}

	posts := rec.byPath("/open_api/v1.3/post/create/")
	if len(posts) != 1 {
		t.Fatalf("posts: %d", len(posts))
	}
	if posts[0].Header.Get("Access-Token") != "tt-tok" {
		t.Error("missing Access-Token header")
	}
	var body map[string]string
	json.Unmarshal(posts[0].Body, &body)
	if body["business_id"] != "biz-7" || body["video_id"] != "v-1" || body["caption"] != "Launch\n\nWe shipped." {
		t.Errorf("post body: %v", body)
	}
}

func TestTikTokNonZeroCodeFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /open_api/v1.3/media/upload/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"code":40001,"message":"access token expired","request_id":"req-1"}`)
	})
	srv, rec := newRecordingServer(t, mux)

	tt := NewTikTok(srv.URL, tokensFor(tiktokCred()), testClient())
	o := tt.Publish(context.Background(), launchCaption(), mediaFiles(t, "clip.mp4"))
	requireOutcome(t, o, models.OutcomeFailed)
	if o.Kind != models.KindTransport || !strings.Contains(o.Reason, "40001") {
		t.Errorf("outcome: %+v", o)
	}
	if len(rec.byPath("/open_api/v1.3/post/create/")) != 0 {
		t.Error("no post expected after a failed upload")
	}
}

func TestTikTokSkipsWithoutVideo(t *testing.T) {
	mux := http.NewServeMux()
	srv, rec := newRecordingServer(t, mux)
	tt := NewTikTok(srv.URL, tokensFor(tiktokCred()), testClient())

	requireOutcome(t, tt.Publish(context.Background(), launchCaption(), mediaFiles(t, "a.jpg")), models.OutcomeSkipped)
	if len(rec.all()) != 0 {
		t.Error("no request expected")
	}
}

// =====================================================================
// Website
// =====================================================================

func TestWebsiteArticleWithImages(t *testing.T) {
	var ids int32 = 9
	mux := http.NewServeMux()
	mux.HandleFunc("POST /wp-json/wp/v2/media", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&ids, 1)
		writeJSON(w, http.StatusCreated, fmt.Sprintf(`{"id":%d,"source_url":"https://blog.test/uploads/%d.jpg"}`, n, n))
	})
	mux.HandleFunc("POST /wp-json/wp/v2/posts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"id":77,"link":"https://blog.test/launch"}`)
	})
	srv, rec := newRecordingServer(t, mux)

	cred := &models.Credential{Destination: models.DestinationWebsite, AccessToken: "app-pass", SiteURL: srv.URL + "/", Username: "editor"}
	site := NewWebsite(tokensFor(cred), testClient())

	c := Caption{TitlePrimary: "Launch", BodyPrimary: "We shipped.", TitleSecondary: "Lansare", BodySecondary: "Am lansat <azi>."}
	o := site.Publish(context.Background(), c, mediaFiles(t, "a.jpg", "b.jpg", "clip.mp4"))
	requireOutcome(t, o, models.OutcomeSucceeded)
	if o.RemoteID != "77" {
		t.Errorf("RemoteID: %q", o.RemoteID)
	}

	uploads := rec.byPath("/wp-json/wp/v2/media")
	if len(uploads) != 2 {
		t.Fatalf("media uploads: %d", len(uploads))
	}
	if got := uploads[0].Header.Get("Content-Disposition"); got != "attachment; filename=a.jpg" {
		t.Errorf("Content-Disposition: %q", got)
	}
	user, pass, ok := (&http.Request{Header: uploads[0].Header}).BasicAuth()
	if !ok || user != "editor" || pass != "app-pass" {
		t.Errorf("basic auth: %q %q %v", user, pass, ok)
	}

	var post wpPost
	if err := json.Unmarshal(rec.byPath("/wp-json/wp/v2/posts")[0].Body, &post); err != nil {
		t.Fatalf("post body: %v", err)
	}
	if post.Title != "Lansare | Launch" || post.Slug != "lansare-launch" || post.Status != "publish" || post.FeaturedMedia != 10 {
		t.Errorf("post: %+v", post)
	}
	for _, want := range []string{"<p>Am lansat", "<p>We shipped.</p>", "https://blog.test/uploads/11.jpg"} {
		if !strings.Contains(post.Content, want) {
			t.Errorf("content missing %q:\n%s", want, post.Content)
		}
	}
	if strings.Contains(post.Content, "<azi>") {
		t.Error("raw HTML from the body must not reach the article")
	}
	if strings.Contains(post.Content, "uploads/10.jpg") {
		t.Error("featured image must not repeat in the body")
	}
}

func TestWebsiteSkipsWithoutTitle(t *testing.T) {
	_, rec := newRecordingServer(t, http.NewServeMux())
	site := NewWebsite(tokensFor(), testClient())

	o := site.Publish(context.Background(), Caption{BodyPrimary: "only a body"}, nil)
	requireOutcome(t, o, models.OutcomeSkipped)
	if len(rec.all()) != 0 {
		t.Error("no request expected")
	}
}
