// Package drive implements the hierarchical file store against the Google
// Drive v3 API. Each document type has a root folder; case folders are
// created underneath the root for their type.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/nexxia-ai/casepipe"
	"github.com/nexxia-ai/casepipe/retry"
)

const (
	defaultBaseURL = "https://www.googleapis.com/drive/v3"
	folderMIMEType = "application/vnd.google-apps.folder"
)

type Client struct {
	token   string
	baseURL string
	roots   map[casepipe.DocumentType]string
	client  *http.Client
}

// NewClient returns a file store backed by Google Drive. token is an OAuth
// access token; roots maps each document type to the id of its root folder.
// An empty token falls back to GOOGLE_DRIVE_TOKEN.
func NewClient(token string, roots map[casepipe.DocumentType]string) *Client {
	if token == "" {
		token = os.Getenv("GOOGLE_DRIVE_TOKEN")
	}
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		roots:   roots,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at a different endpoint. Used in tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

func (c *Client) CreateCaseFolder(ctx context.Context, dt casepipe.DocumentType, name string) (string, string, error) {
	root, ok := c.roots[dt]
	if !ok {
		return "", "", fmt.Errorf("no root folder configured for document type %q", dt)
	}

	id, link, err := c.createFolder(ctx, root, name)
	if err != nil {
		return "", "", fmt.Errorf("create case folder: %w", err)
	}
	return link, id, nil
}

func (c *Client) CreateSubfolder(ctx context.Context, parentID, name string) error {
	if _, _, err := c.createFolder(ctx, parentID, name); err != nil {
		return fmt.Errorf("create subfolder: %w", err)
	}
	return nil
}

// Delete removes a file or folder. Deleting a folder removes its contents.
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/files/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete file: %w: %w", err, retry.ErrTemporary)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return classifyStatus("delete file", resp.StatusCode, body)
}

func (c *Client) createFolder(ctx context.Context, parentID, name string) (string, string, error) {
	reqBody := map[string]any{
		"name":     name,
		"mimeType": folderMIMEType,
		"parents":  []string{parentID},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files?fields=id,webViewLink", &buf)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("create folder: %w: %w", err, retry.ErrTemporary)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", classifyStatus("create folder", resp.StatusCode, data)
	}

	var file struct {
		ID          string `json:"id"`
		WebViewLink string `json:"webViewLink"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}
	return file.ID, file.WebViewLink, nil
}

func classifyStatus(op string, status int, body []byte) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return fmt.Errorf("%s: status %d: %s: %w", op, status, string(body), retry.ErrTemporary)
	}
	return fmt.Errorf("%s: status %d: %s", op, status, string(body))
}
