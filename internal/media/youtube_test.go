package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISO8601Duration(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"PT3M4S", 184000},
		{"PT1H", 3600000},
		{"PT1H30M", 5400000},
		{"PT45S", 45000},
		{"PT1H1M1S", 3661000},
		{"P1DT1H", 0},
		{"invalid", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseISO8601Duration(tt.input))
		})
	}
}

func newYouTubeServer(t *testing.T, videosStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lofi", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("maxResults"))
		assert.Equal(t, "key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"items": [
			{"id": {"videoId": "vid1"}, "snippet": {"title": "Track 1", "channelTitle": "Artist 1",
				"thumbnails": {"high": {"url": "http://img/high"}}}},
			{"id": {"videoId": "vid2"}, "snippet": {"title": "Track 2", "channelTitle": "Artist 2",
				"thumbnails": {"default": {"url": "http://img/default"}}}}
		]}`))
	})
	mux.HandleFunc("/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		if videosStatus != http.StatusOK {
			w.WriteHeader(videosStatus)
			return
		}
		assert.Equal(t, "vid1,vid2", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"items": [
			{"id": "vid1", "contentDetails": {"duration": "PT3M"}},
			{"id": "vid2", "contentDetails": {"duration": "PT1M30S"}}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestYouTubeSearch(t *testing.T) {
	srv := newYouTubeServer(t, http.StatusOK)
	client := NewYouTubeClient("key", srv.URL+"/youtube/v3/search")

	items, err := client.Search(context.Background(), "lofi", 5)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "vid1", items[0].ProviderTrackID)
	assert.Equal(t, "youtube", items[0].Provider)
	assert.Equal(t, "http://img/high", items[0].ThumbnailURL)
	assert.Equal(t, 180000, items[0].DurationMs)

	assert.Equal(t, "http://img/default", items[1].ThumbnailURL)
	assert.Equal(t, 90000, items[1].DurationMs)
}

func TestYouTubeSearchWithoutDurations(t *testing.T) {
	srv := newYouTubeServer(t, http.StatusForbidden)
	client := NewYouTubeClient("key", srv.URL+"/youtube/v3/search")

	items, err := client.Search(context.Background(), "lofi", 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Zero(t, items[0].DurationMs)
}

func TestYouTubeSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewYouTubeClient("key", srv.URL+"/search")
	_, err := client.Search(context.Background(), "lofi", 5)
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestVideosURL(t *testing.T) {
	assert.Equal(t, "http://x/v3/videos", NewYouTubeClient("", "http://x/v3/search").videosURL())
	assert.Equal(t, "https://www.googleapis.com/youtube/v3/videos", NewYouTubeClient("", "http://x/find").videosURL())
	assert.Equal(t, DefaultYouTubeSearchURL, NewYouTubeClient("", "").searchURL)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(26))
	assert.Equal(t, 25, ClampLimit(25))
	assert.Equal(t, 3, ClampLimit(3))
}
