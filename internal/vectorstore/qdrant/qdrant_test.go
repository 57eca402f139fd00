package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/internal/domain"
)

func TestNearest_DefaultLayout(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/kb/points/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.9,"payload":{"page_content":"reset it","metadata":{"title":"Password","source":"kb/pw"}}},
			{"score":0.4,"payload":{"page_content":"vpn","metadata":{"title":"VPN"}}}
		]}`))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "kb"})
	matches, err := s.Nearest(context.Background(), []float64{1, 0}, 4)
	require.NoError(t, err)

	assert.Equal(t, []domain.Match{
		{Text: "reset it", Title: "Password", SourceID: "kb/pw", Score: 0.9},
		{Text: "vpn", Title: "VPN", Score: 0.4},
	}, matches)
	assert.Equal(t, float64(4), got["limit"])
	assert.Equal(t, true, got["with_payload"])
}

func TestNearest_CustomKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[{"score":1,"payload":{"text":"t","title":"T","url":"https://x"}}]}`))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "c", TextKey: "text", TitleKey: "title", SourceKey: "url"})
	matches, err := s.Nearest(context.Background(), []float64{1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "https://x", matches[0].SourceID)
	assert.Equal(t, "T", matches[0].Title)
}

func TestNearest_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewStorage(Config{URL: srv.URL, Collection: "missing"}).Nearest(context.Background(), []float64{1}, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNearest_InvalidLimit(t *testing.T) {
	_, err := NewStorage(Config{URL: "http://unused"}).Nearest(context.Background(), []float64{1}, 0)
	assert.Error(t, err)
}

func TestLookupString(t *testing.T) {
	payload := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": "deep"}},
		"n": 3.0,
	}
	assert.Equal(t, "deep", lookupString(payload, "a.b.c"))
	assert.Empty(t, lookupString(payload, "a.b"))
	assert.Empty(t, lookupString(payload, "a.x.c"))
	assert.Empty(t, lookupString(payload, "n"))
	assert.Empty(t, lookupString(payload, "n.m"))
}
