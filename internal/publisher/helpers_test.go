package publisher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"crosspost/internal/credentials"
	"crosspost/internal/models"
)

// ---------- Helpers ----------

// fakeTokens serves fixed credentials, or an error per destination.
type fakeTokens struct {
	creds map[models.Destination]*models.Credential
	errs  map[models.Destination]error
}

func (f *fakeTokens) Valid(_ context.Context, dest models.Destination) (*models.Credential, error) {
	if err := f.errs[dest]; err != nil {
		return nil, err
	}
	if c, ok := f.creds[dest]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, &credentials.AuthError{Destination: dest, Reason: "no credential", ReauthRequired: true, Err: credentials.ErrMissing}
}

func tokensFor(creds ...*models.Credential) *fakeTokens {
	f := &fakeTokens{creds: map[models.Destination]*models.Credential{}, errs: map[models.Destination]error{}}
	for _, c := range creds {
		f.creds[c.Destination] = c
	}
	return f
}

// fakeHost maps files to a fixed CDN prefix.
type fakeHost struct {
	mu    sync.Mutex
	calls []string
}

func (h *fakeHost) PublicURL(_ context.Context, path string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, path)
	return "https://cdn.test/" + filepath.Base(path), nil
}

// mediaFiles creates small files with the given names in a temp dir.
func mediaFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("data-"+n), 0o644); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
		paths = append(paths, p)
	}
	return paths
}

// recorded is one request seen by a test server.
type recorded struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
	Form   map[string][]string
}

// recorder captures every request before handing it to the mux.
type recorder struct {
	mu   sync.Mutex
	reqs []recorded
}

func (r *recorder) wrap(t *testing.T, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := readAll(req)
		rec := recorded{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.RawQuery,
			Header: req.Header.Clone(),
			Body:   body,
		}
		if req.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
			rec.Form = parseForm(t, body)
		}
		r.mu.Lock()
		r.reqs = append(r.reqs, rec)
		r.mu.Unlock()
		req.Body = newBody(body)
		h.ServeHTTP(w, req)
	})
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.reqs...)
}

func (r *recorder) byPath(path string) []recorded {
	var out []recorded
	for _, req := range r.all() {
		if req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func newRecordingServer(t *testing.T, mux *http.ServeMux) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(rec.wrap(t, mux))
	t.Cleanup(srv.Close)
	return srv, rec
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func fastPoll() Poller {
	return Poller{Interval: time.Millisecond, MaxAttempts: 5}
}

func testClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}

func launchCaption() Caption {
	return Caption{TitlePrimary: "Launch", BodyPrimary: "We shipped."}
}

func readAll(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func newBody(b []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b))
}

func parseForm(t *testing.T, body []byte) map[string][]string {
	t.Helper()
	v, err := url.ParseQuery(string(body))
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	return v
}
