package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 2 << 10

// TransportError reports a network failure or a non-2xx response.
// Status is zero when no response was received.
type TransportError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v: %s", e.Op, e.Status, e.Err, e.Body)
	default:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}

// api is the HTTP plumbing shared by every adapter.
type api struct {
	client *http.Client
}

// send executes req and returns the response headers and body of a 2xx
// response. Anything else is a *TransportError.
func (a api) send(req *http.Request, op string) (http.Header, []byte, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &TransportError{Op: op, Status: resp.StatusCode, Body: truncateBody(body)}
	}
	return resp.Header, body, nil
}

// do executes req and decodes a JSON answer into out when out is non-nil.
func (a api) do(req *http.Request, op string, out any) error {
	_, body, err := a.send(req, op)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := decodeOptional(body, out); err != nil {
		return &TransportError{Op: op, Status: http.StatusOK, Body: truncateBody(body), Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// decodeOptional unmarshals body into out unless body is empty.
func decodeOptional(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func jsonRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func formRequest(ctx context.Context, endpoint string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// fileRequest streams a local file as the raw request body. The transport
// closes the file once the request is sent.
func fileRequest(ctx context.Context, method, endpoint, path, contentType string) (*http.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat media: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", contentType)
	return req, nil
}

// multipartRequest streams a file as one part of a multipart/form-data body,
// alongside plain fields.
func multipartRequest(ctx context.Context, endpoint, field, path string, fields map[string]string) (*http.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		part, err := mw.CreateFormFile(field, filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}
