package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	httpserver "github.com/fyrsmithlabs/docspace/internal/http"
)

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

type apiClient struct {
	base string
	http *http.Client
}

func (c *cli) client() *apiClient {
	return &apiClient{
		base: strings.TrimRight(c.serverURL, "/"),
		http: &http.Client{Timeout: c.timeout},
	}
}

// do sends body as JSON and decodes a 2xx response into out. It returns the
// status code so callers can tell 201 from 202.
func (a *apiClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, r)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, out)
}

// upload posts a file as multipart form data.
func (a *apiClient) upload(ctx context.Context, path, file string, fields map[string]string, out any) (int, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return 0, err
		}
	}
	part, err := w.CreateFormFile("file", filepath.Base(file))
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", file, err)
	}
	if err := w.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+path, &buf)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return a.send(req, out)
}

func (a *apiClient) send(req *http.Request, out any) (int, error) {
	resp, err := a.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request to %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, newAPIError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// download copies a raw response body to w and returns the file name from
// Content-Disposition, if any.
func (a *apiClient) download(ctx context.Context, path string, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request to %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return "", newAPIError(resp.StatusCode, data)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var name string
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = filepath.Base(params["filename"])
	}
	return name, nil
}

func newAPIError(status int, data []byte) *apiError {
	apiErr := &apiError{Status: status, Message: strings.TrimSpace(string(data))}
	var er httpserver.ErrorResponse
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		apiErr.Message = er.Error
		apiErr.RequestID = er.RequestID
	}
	return apiErr
}
