package docs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDocument(t *testing.T) {
	var calls []string
	var insertedText string
	var reparented bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.URL.Path == "/documents":
			json.NewEncoder(w).Encode(map[string]string{"documentId": "doc-1"})
		case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
			var body struct {
				Requests []struct {
					InsertText struct {
						Text string `json:"text"`
					} `json:"insertText"`
				} `json:"requests"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Requests, 1)
			insertedText = body.Requests[0].InsertText.Text
			w.Write([]byte("{}"))
		case strings.HasPrefix(r.URL.Path, "/files/"):
			require.Equal(t, "folder-1", r.URL.Query().Get("addParents"))
			reparented = true
			w.Write([]byte("{}"))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient("tok").WithBaseURLs(srv.URL, srv.URL)
	link, id, err := c.CreateDocument(context.Background(), "D-2026-001 - Complaint", "document body", "folder-1")
	require.NoError(t, err)

	assert.Equal(t, "doc-1", id)
	assert.Equal(t, "https://docs.google.com/document/d/doc-1/edit", link)
	assert.Equal(t, "document body", insertedText)
	assert.True(t, reparented)
	assert.Len(t, calls, 3)
}

func TestCreateDocumentWithoutFolder(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path == "/documents" {
			json.NewEncoder(w).Encode(map[string]string{"documentId": "doc-2"})
			return
		}
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := NewClient("tok").WithBaseURLs(srv.URL, srv.URL)
	_, id, err := c.CreateDocument(context.Background(), "title", "body", "")
	require.NoError(t, err)
	assert.Equal(t, "doc-2", id)
	// no reparent call when there is no folder
	assert.Equal(t, 2, calls)
}
