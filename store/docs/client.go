// Package docs implements the editable document store against the Google
// Docs v1 API. Created documents are filed into their case folder through
// the Drive file endpoint, since the Docs API has no notion of folders.
package docs

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

	"github.com/nexxia-ai/casepipe/retry"
)

const (
	defaultDocsURL  = "https://docs.googleapis.com/v1"
	defaultDriveURL = "https://www.googleapis.com/drive/v3"
)

type Client struct {
	token    string
	docsURL  string
	driveURL string
	client   *http.Client
}

// NewClient returns a document store backed by Google Docs. An empty token
// falls back to GOOGLE_DRIVE_TOKEN, which covers both APIs.
func NewClient(token string) *Client {
	if token == "" {
		token = os.Getenv("GOOGLE_DRIVE_TOKEN")
	}
	return &Client{
		token:    token,
		docsURL:  defaultDocsURL,
		driveURL: defaultDriveURL,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// WithBaseURLs points the client at different endpoints. Used in tests.
func (c *Client) WithBaseURLs(docsURL, driveURL string) *Client {
	c.docsURL = docsURL
	c.driveURL = driveURL
	return c
}

// CreateDocument creates a document with the given content and, when
// parentID is set, files it inside that folder. The returned link opens the
// document in the editor.
func (c *Client) CreateDocument(ctx context.Context, title, content, parentID string) (string, string, error) {
	docID, err := c.createEmpty(ctx, title)
	if err != nil {
		return "", "", err
	}

	if err := c.insertText(ctx, docID, content); err != nil {
		return "", "", err
	}

	if parentID != "" {
		if err := c.moveToFolder(ctx, docID, parentID); err != nil {
			return "", "", err
		}
	}

	return fmt.Sprintf("https://docs.google.com/document/d/%s/edit", docID), docID, nil
}

func (c *Client) createEmpty(ctx context.Context, title string) (string, error) {
	data, err := c.do(ctx, http.MethodPost, c.docsURL+"/documents", map[string]any{"title": title})
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}

	var doc struct {
		DocumentID string `json:"documentId"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decode document: %w", err)
	}
	return doc.DocumentID, nil
}

func (c *Client) insertText(ctx context.Context, docID, content string) error {
	body := map[string]any{
		"requests": []map[string]any{
			{
				"insertText": map[string]any{
					"location": map[string]any{"index": 1},
					"text":     content,
				},
			},
		},
	}
	_, err := c.do(ctx, http.MethodPost, c.docsURL+"/documents/"+url.PathEscape(docID)+":batchUpdate", body)
	if err != nil {
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

func (c *Client) moveToFolder(ctx context.Context, docID, parentID string) error {
	endpoint := fmt.Sprintf("%s/files/%s?addParents=%s", c.driveURL, url.PathEscape(docID), url.QueryEscape(parentID))
	_, err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{})
	if err != nil {
		return fmt.Errorf("file document into folder: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", method, endpoint, err, retry.ErrTemporary)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return data, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%s %s: status %d: %s: %w", method, endpoint, resp.StatusCode, string(data), retry.ErrTemporary)
	}
	return nil, fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, string(data))
}
