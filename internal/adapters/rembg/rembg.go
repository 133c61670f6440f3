// Package rembg calls a rembg HTTP server ("rembg s") to cut out image
// backgrounds.
package rembg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"multitool/internal/services"
)

// maxResponseBytes caps the PNG read back from the server.
const maxResponseBytes = 64 << 20

type Client struct {
	baseURL string
	http    *http.Client
}

var _ services.BackgroundRemover = (*Client)(nil)

// New returns a client for the server at baseURL, e.g. http://localhost:7000.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("missing rembg base URL")
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}, nil
}

// RemoveBackground posts the image as multipart form field "file" and
// returns the PNG body.
func (c *Client) RemoveBackground(ctx context.Context, image []byte, filename string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/remove", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "image/png")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rembg request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read rembg response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rembg returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
