package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"yt-pulse/internal/domain"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (m *memCache) Set(key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return value, nil
}

func testClient(t *testing.T, baseURL string, cache domain.Cache) *Client {
	t.Helper()
	client, err := NewClient(Config{
		APIKey:           "test-key",
		BaseURL:          baseURL,
		Timeout:          time.Second,
		RetentionDays:    30,
		CommentsPerVideo: 200,
		Retry:            RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	}, cache, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func channelsResponse(uploads string) map[string]any {
	return map[string]any{
		"items": []map[string]any{{
			"contentDetails": map[string]any{
				"relatedPlaylists": map[string]any{"uploads": uploads},
			},
		}},
	}
}

func playlistResponse(nextToken string, published time.Time, ids ...string) map[string]any {
	items := make([]map[string]any, len(ids))
	for i, id := range ids {
		items[i] = map[string]any{
			"contentDetails": map[string]any{
				"videoId":          id,
				"videoPublishedAt": published.Format(time.RFC3339),
			},
		}
	}
	return map[string]any{"nextPageToken": nextToken, "items": items}
}

func videoItems(ids ...string) map[string]any {
	items := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		items[i] = json.RawMessage(fmt.Sprintf(`{"id":%q,"snippet":{"title":"t","publishedAt":"2026-08-20T10:00:00Z"},"statistics":{"viewCount":"10"}}`, id))
	}
	return map[string]any{"items": items}
}

func apiError(reason string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"message": reason,
			"errors":  []map[string]any{{"reason": reason}},
		},
	}
}

var testChannel = domain.Channel{ID: 1, ExternalID: "UC-test", Title: "Test"}

func TestFetchPageVideosPaginates(t *testing.T) {
	recent := time.Now().UTC().Add(-24 * time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels":
			writeJSON(w, channelsResponse("UU-test"))
		case "/playlistItems":
			if r.URL.Query().Get("pageToken") == "" {
				writeJSON(w, playlistResponse("page-2", recent, "vid-1", "vid-2"))
				return
			}
			writeJSON(w, playlistResponse("", recent, "vid-3"))
		case "/videos":
			w.WriteHeader(http.StatusOK)
			writeJSON(w, videoItems(splitIDs(r)...))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, newMemCache())
	ctx := context.Background()

	var collected []string
	var cursor domain.Cursor
	for !cursor.Done {
		page, next, err := client.FetchPage(ctx, testChannel, domain.KindVideos, cursor)
		if err != nil {
			t.Fatalf("FetchPage: %v", err)
		}
		for _, item := range page.Items {
			collected = append(collected, item.ExternalID)
		}
		cursor = next
	}

	want := []string{"vid-1", "vid-2", "vid-3"}
	if len(collected) != len(want) {
		t.Fatalf("collected %v, want %v", collected, want)
	}
	for i := range want {
		if collected[i] != want[i] {
			t.Fatalf("collected %v, want %v", collected, want)
		}
	}
}

func splitIDs(r *http.Request) []string {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("id"), ",") {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func TestFetchPageRetentionStopsPagination(t *testing.T) {
	recent := time.Now().UTC().Add(-24 * time.Hour)
	old := time.Now().UTC().Add(-90 * 24 * time.Hour)
	playlistCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels":
			writeJSON(w, channelsResponse("UU-test"))
		case "/playlistItems":
			playlistCalls++
			resp := map[string]any{
				"nextPageToken": "page-2",
				"items": []map[string]any{
					{"contentDetails": map[string]any{"videoId": "vid-1", "videoPublishedAt": recent.Format(time.RFC3339)}},
					{"contentDetails": map[string]any{"videoId": "vid-old", "videoPublishedAt": old.Format(time.RFC3339)}},
				},
			}
			writeJSON(w, resp)
		case "/videos":
			writeJSON(w, videoItems("vid-1"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, newMemCache())

	page, next, err := client.FetchPage(context.Background(), testChannel, domain.KindVideos, domain.Cursor{})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if !next.Done {
		t.Fatalf("cursor not done after hitting retention boundary")
	}
	if len(page.Items) != 1 || page.Items[0].ExternalID != "vid-1" {
		t.Fatalf("items = %+v, want only vid-1", page.Items)
	}
	if playlistCalls != 1 {
		t.Fatalf("playlist fetched %d times, want 1", playlistCalls)
	}
}

func TestFetchPageQuotaClassified(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
		writeJSON(w, apiError("quotaExceeded"))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, newMemCache())
	_, _, err := client.FetchPage(context.Background(), testChannel, domain.KindVideos, domain.Cursor{})
	if !domain.IsQuotaExceeded(err) {
		t.Fatalf("err = %v, want quota classification", err)
	}
	if calls != 1 {
		t.Fatalf("quota error retried: %d calls", calls)
	}
}

func TestFetchPagePermanentNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, apiError("channelNotFound"))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, newMemCache())
	_, _, err := client.FetchPage(context.Background(), testChannel, domain.KindVideos, domain.Cursor{})
	if !domain.IsPermanentFetch(err) {
		t.Fatalf("err = %v, want permanent classification", err)
	}
	if calls != 1 {
		t.Fatalf("permanent error retried: %d calls", calls)
	}
}

func TestFetchPageTransientRetriedUntilSuccess(t *testing.T) {
	recent := time.Now().UTC().Add(-24 * time.Hour)
	channelCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels":
			channelCalls++
			if channelCalls < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				writeJSON(w, apiError("backendError"))
				return
			}
			writeJSON(w, channelsResponse("UU-test"))
		case "/playlistItems":
			writeJSON(w, playlistResponse("", recent, "vid-1"))
		case "/videos":
			writeJSON(w, videoItems("vid-1"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, newMemCache())
	page, _, err := client.FetchPage(context.Background(), testChannel, domain.KindVideos, domain.Cursor{})
	if err != nil {
		t.Fatalf("FetchPage after transient failures: %v", err)
	}
	if channelCalls != 3 {
		t.Fatalf("channels called %d times, want 3", channelCalls)
	}
	if len(page.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(page.Items))
	}
}

func TestFetchPageUploadsPlaylistCached(t *testing.T) {
	recent := time.Now().UTC().Add(-24 * time.Hour)
	channelCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels":
			channelCalls++
			writeJSON(w, channelsResponse("UU-test"))
		case "/playlistItems":
			writeJSON(w, playlistResponse("", recent, "vid-1"))
		case "/videos":
			writeJSON(w, videoItems("vid-1"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, newMemCache())
	for i := 0; i < 3; i++ {
		if _, _, err := client.FetchPage(context.Background(), testChannel, domain.KindVideos, domain.Cursor{}); err != nil {
			t.Fatalf("FetchPage %d: %v", i, err)
		}
	}
	if channelCalls != 1 {
		t.Fatalf("channels.list called %d times, want 1 (cached)", channelCalls)
	}
}

func TestFetchPageCommentsSkipsDisabledVideo(t *testing.T) {
	recent := time.Now().UTC().Add(-24 * time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels":
			writeJSON(w, channelsResponse("UU-test"))
		case "/playlistItems":
			writeJSON(w, playlistResponse("", recent, "vid-disabled", "vid-open"))
		case "/commentThreads":
			if r.URL.Query().Get("videoId") == "vid-disabled" {
				w.WriteHeader(http.StatusForbidden)
				writeJSON(w, apiError("commentsDisabled"))
				return
			}
			writeJSON(w, map[string]any{
				"items": []json.RawMessage{json.RawMessage(`{
					"id": "comment-1",
					"snippet": {"videoId": "vid-open", "topLevelComment": {"snippet": {
						"textDisplay": "great song",
						"authorDisplayName": "fan",
						"authorChannelId": {"value": "UC-fan"},
						"publishedAt": "2026-08-20T10:00:00Z",
						"likeCount": 2
					}}}
				}`)},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, newMemCache())

	var collected []string
	var cursor domain.Cursor
	for !cursor.Done {
		page, next, err := client.FetchPage(context.Background(), testChannel, domain.KindComments, cursor)
		if err != nil {
			t.Fatalf("FetchPage: %v", err)
		}
		for _, item := range page.Items {
			collected = append(collected, item.ExternalID)
		}
		cursor = next
	}

	if len(collected) != 1 || collected[0] != "comment-1" {
		t.Fatalf("collected %v, want [comment-1]", collected)
	}
}

func TestFetchPageMalformedCommentCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, newMemCache())
	_, _, err := client.FetchPage(context.Background(), testChannel, domain.KindComments, domain.Cursor{PageToken: "{not json"})
	if !domain.IsPermanentFetch(err) {
		t.Fatalf("err = %v, want permanent classification", err)
	}
}
