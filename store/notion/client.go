// Package notion implements the case tracker against the Notion API. Each
// case is a page in a shared database; deleting a record archives the page.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nexxia-ai/casepipe"
	"github.com/nexxia-ai/casepipe/retry"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
)

type Client struct {
	apiKey     string
	databaseID string
	baseURL    string
	client     *http.Client
}

// NewClient returns a case tracker backed by a Notion database. Empty
// arguments fall back to NOTION_API_KEY and NOTION_DATABASE_ID.
func NewClient(apiKey, databaseID string) *Client {
	if apiKey == "" {
		apiKey = os.Getenv("NOTION_API_KEY")
	}
	if databaseID == "" {
		databaseID = os.Getenv("NOTION_DATABASE_ID")
	}
	return &Client{
		apiKey:     apiKey,
		databaseID: databaseID,
		baseURL:    defaultBaseURL,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at a different endpoint. Used in tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

func (c *Client) CreateRecord(ctx context.Context, rec casepipe.CaseRecord) (string, string, error) {
	props := map[string]any{
		"Name":     titleProp(rec.Title),
		"Case ID":  richTextProp(rec.CaseID),
		"Type":     selectProp(string(rec.DocumentType)),
		"Persona":  richTextProp(rec.Persona),
		"Status":   selectProp(rec.Status),
		"Created":  dateProp(rec.CreatedAt),
		"Context":  richTextProp(truncate(rec.InitialContext, 2000)),
		"Summary":  richTextProp(truncate(rec.Summary, 2000)),
		"Thesis":   richTextProp(truncate(rec.Thesis, 2000)),
		"Area":     richTextProp(rec.LegalArea),
		"Argument": richTextProp(truncate(rec.SpecificPoint, 2000)),
	}

	body := map[string]any{
		"parent":     map[string]any{"database_id": c.databaseID},
		"properties": props,
	}

	data, err := c.do(ctx, http.MethodPost, "/pages", body)
	if err != nil {
		return "", "", fmt.Errorf("create record: %w", err)
	}

	var page struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return "", "", fmt.Errorf("decode page: %w", err)
	}
	return page.ID, page.URL, nil
}

func (c *Client) DeleteRecord(ctx context.Context, recordID string) error {
	_, err := c.do(ctx, http.MethodPatch, "/pages/"+recordID, map[string]any{"archived": true})
	if err != nil {
		return fmt.Errorf("archive record: %w", err)
	}
	return nil
}

// LastCaseID pages through the database and returns the highest case id with
// the given prefix, or empty when none exist.
func (c *Client) LastCaseID(ctx context.Context, prefix string) (string, error) {
	var last string
	var cursor string

	for {
		body := map[string]any{
			"page_size": 100,
			"filter": map[string]any{
				"property":  "Case ID",
				"rich_text": map[string]any{"starts_with": prefix + "-"},
			},
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		data, err := c.do(ctx, http.MethodPost, "/databases/"+c.databaseID+"/query", body)
		if err != nil {
			return "", fmt.Errorf("query database: %w", err)
		}

		var page struct {
			Results []struct {
				Properties map[string]struct {
					RichText []struct {
						PlainText string `json:"plain_text"`
					} `json:"rich_text"`
				} `json:"properties"`
			} `json:"results"`
			HasMore    bool   `json:"has_more"`
			NextCursor string `json:"next_cursor"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return "", fmt.Errorf("decode query response: %w", err)
		}

		for _, result := range page.Results {
			prop, ok := result.Properties["Case ID"]
			if !ok || len(prop.RichText) == 0 {
				continue
			}
			id := prop.RichText[0].PlainText
			if caseIDLess(last, id) {
				last = id
			}
		}

		if !page.HasMore {
			return last, nil
		}
		cursor = page.NextCursor
	}
}

func (c *Client) UpdateRecordLinks(ctx context.Context, recordID, folderLink, documentLink string) error {
	props := map[string]any{}
	if folderLink != "" {
		props["Folder"] = urlProp(folderLink)
	}
	if documentLink != "" {
		props["Document"] = urlProp(documentLink)
	}
	if len(props) == 0 {
		return nil
	}

	_, err := c.do(ctx, http.MethodPatch, "/pages/"+recordID, map[string]any{"properties": props})
	if err != nil {
		return fmt.Errorf("update record links: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, err, retry.ErrTemporary)
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
		return nil, fmt.Errorf("%s %s: status %d: %s: %w", method, path, resp.StatusCode, string(data), retry.ErrTemporary)
	}
	return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(data))
}

// caseIDLess orders <Prefix>-<Year>-<Seq> ids by year then sequence. An empty
// id sorts first.
func caseIDLess(a, b string) bool {
	if a == "" {
		return b != ""
	}
	pa, pb := splitCaseID(a), splitCaseID(b)
	if pa[0] != pb[0] {
		return pa[0] < pb[0]
	}
	return pa[1] < pb[1]
}

func splitCaseID(id string) [2]int {
	parts := strings.Split(id, "-")
	if len(parts) != 3 {
		return [2]int{}
	}
	var year, seq int
	fmt.Sscanf(parts[1], "%d", &year)
	fmt.Sscanf(parts[2], "%d", &seq)
	return [2]int{year, seq}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func titleProp(v string) map[string]any {
	return map[string]any{"title": []map[string]any{{"text": map[string]any{"content": v}}}}
}

func richTextProp(v string) map[string]any {
	return map[string]any{"rich_text": []map[string]any{{"text": map[string]any{"content": v}}}}
}

func selectProp(v string) map[string]any {
	return map[string]any{"select": map[string]any{"name": v}}
}

func dateProp(v time.Time) map[string]any {
	return map[string]any{"date": map[string]any{"start": v.Format(time.RFC3339)}}
}

func urlProp(v string) map[string]any {
	return map[string]any{"url": v}
}
