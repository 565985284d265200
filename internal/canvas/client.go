// Package canvas is a minimal client for the Canvas LMS REST API, covering
// the course and file listing endpoints the sync pipeline needs plus file
// download.
package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// perPage is the page size requested from list endpoints.
const perPage = 100

// Course is a course as reported by the Canvas API.
type Course struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// File is a file attachment as reported by the Canvas API.
type File struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
	ContentType string `json:"content-type"`
	Size        int64  `json:"size"`
}

// Client talks to one Canvas instance on behalf of one user token.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New constructs a Client for the given Canvas base URL (e.g.
// "https://canvas.example.edu") and API token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// ListCourses returns the courses visible to the token's user.
func (c *Client) ListCourses(ctx context.Context) ([]Course, error) {
	url := fmt.Sprintf("%s/api/v1/courses?per_page=%d", c.baseURL, perPage)
	var courses []Course
	if err := c.getJSON(ctx, url, &courses); err != nil {
		return nil, fmt.Errorf("canvas: list courses: %w", err)
	}
	return courses, nil
}

// ListFiles returns the files attached to a course.
func (c *Client) ListFiles(ctx context.Context, courseID int64) ([]File, error) {
	url := fmt.Sprintf("%s/api/v1/courses/%d/files?per_page=%d", c.baseURL, courseID, perPage)
	var files []File
	if err := c.getJSON(ctx, url, &files); err != nil {
		return nil, fmt.Errorf("canvas: list files for course %d: %w", courseID, err)
	}
	return files, nil
}

// Download fetches the file's content to dest, creating parent directories
// as needed. The download URL comes from the file listing and is already
// pre-authorized by Canvas, but the token is sent anyway for instances that
// require it.
func (c *Client) Download(ctx context.Context, file File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("canvas: create download dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return fmt.Errorf("canvas: create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("canvas: download %s: %w", file.DisplayName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("canvas: download %s: HTTP %d", file.DisplayName, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("canvas: create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("canvas: write %s: %w", dest, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
