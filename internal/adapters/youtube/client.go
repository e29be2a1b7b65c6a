package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"yt-pulse/internal/domain"
	"yt-pulse/internal/infra/metrics"
)

const (
	playlistPageSize = 50
	commentPageSize  = 100
	uploadsCacheTTL  = 24 * time.Hour
)

// Client is a quota-aware YouTube Data API v3 client. It fetches pages and
// classifies failures; it never persists anything.
type Client struct {
	http             *http.Client
	baseURL          string
	apiKey           string
	cache            domain.Cache
	retry            RetryConfig
	retention        time.Duration
	commentsPerVideo int
	log              zerolog.Logger
}

var _ domain.VideoSource = (*Client)(nil)

// Config bundles the client settings.
type Config struct {
	APIKey           string
	BaseURL          string
	Timeout          time.Duration
	RetentionDays    int
	CommentsPerVideo int
	Retry            RetryConfig
}

// NewClient creates the API client. The cache memoizes channel-to-uploads
// resolution, which otherwise costs quota on every run.
func NewClient(cfg Config, cache domain.Cache, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube: api key is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://www.googleapis.com/youtube/v3"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	return &Client{
		http:             &http.Client{Timeout: timeout},
		baseURL:          base,
		apiKey:           cfg.APIKey,
		cache:            cache,
		retry:            cfg.Retry,
		retention:        retention,
		commentsPerVideo: cfg.CommentsPerVideo,
		log:              logger,
	}, nil
}

// FetchPage implements domain.VideoSource. Pages arrive in the stable API
// order until the cursor reports Done.
func (c *Client) FetchPage(ctx context.Context, channel domain.Channel, kind domain.DataKind, cursor domain.Cursor) (domain.Page, domain.Cursor, error) {
	if cursor.Done {
		return domain.Page{}, cursor, nil
	}
	switch kind {
	case domain.KindVideos:
		return c.fetchVideoPage(ctx, channel, cursor, kind, "snippet,contentDetails,statistics")
	case domain.KindMetrics:
		return c.fetchVideoPage(ctx, channel, cursor, kind, "statistics")
	case domain.KindComments:
		return c.fetchCommentPage(ctx, channel, cursor)
	default:
		return domain.Page{}, cursor, &domain.FetchError{
			Kind: domain.FetchPermanent, Op: "fetch_page", Reason: fmt.Sprintf("unknown data kind %q", kind),
		}
	}
}

// fetchVideoPage walks one uploads-playlist page and loads the details of
// its videos in a single batch call.
func (c *Client) fetchVideoPage(ctx context.Context, channel domain.Channel, cursor domain.Cursor, kind domain.DataKind, part string) (domain.Page, domain.Cursor, error) {
	uploads, err := c.resolveUploadsPlaylist(ctx, channel)
	if err != nil {
		return domain.Page{}, cursor, err
	}

	items, nextToken, err := c.playlistPage(ctx, uploads, cursor.PageToken)
	if err != nil {
		return domain.Page{}, cursor, err
	}

	ids := make([]string, 0, len(items))
	exhausted := false
	for _, it := range items {
		if c.retention > 0 && !it.PublishedAt.IsZero() && time.Since(it.PublishedAt) > c.retention {
			// Uploads arrive newest first; the rest of the stream is
			// older than the window.
			exhausted = true
			break
		}
		ids = append(ids, it.VideoID)
	}

	raw, err := c.videoDetails(ctx, ids, part)
	if err != nil {
		return domain.Page{}, cursor, err
	}

	next := domain.Cursor{PageToken: nextToken, Done: exhausted || nextToken == ""}
	metrics.FetchPagesTotal.WithLabelValues(string(kind)).Inc()
	return domain.Page{Items: raw, NextCursor: next.PageToken}, next, nil
}

// commentCursor is the opaque state behind a comments-kind cursor: the
// playlist walk position plus the per-video comment thread position.
type commentCursor struct {
	PlaylistToken string   `json:"pt,omitempty"`
	PendingVideos []string `json:"pv,omitempty"`
	VideoID       string   `json:"v,omitempty"`
	VideoToken    string   `json:"vt,omitempty"`
	Fetched       int      `json:"n,omitempty"`
	PlaylistDone  bool     `json:"pd,omitempty"`
}

func (c *Client) fetchCommentPage(ctx context.Context, channel domain.Channel, cursor domain.Cursor) (domain.Page, domain.Cursor, error) {
	var state commentCursor
	if cursor.PageToken != "" {
		if err := json.Unmarshal([]byte(cursor.PageToken), &state); err != nil {
			return domain.Page{}, cursor, &domain.FetchError{
				Kind: domain.FetchPermanent, Op: "comments_cursor", Reason: "malformed cursor", Err: err,
			}
		}
	}

	// Refill the pending video list from the uploads playlist when the
	// current video is exhausted.
	for state.VideoID == "" {
		if len(state.PendingVideos) > 0 {
			state.VideoID = state.PendingVideos[0]
			state.PendingVideos = state.PendingVideos[1:]
			state.VideoToken = ""
			state.Fetched = 0
			break
		}
		if state.PlaylistDone {
			return domain.Page{}, domain.Cursor{Done: true}, nil
		}
		uploads, err := c.resolveUploadsPlaylist(ctx, channel)
		if err != nil {
			return domain.Page{}, cursor, err
		}
		items, nextToken, err := c.playlistPage(ctx, uploads, state.PlaylistToken)
		if err != nil {
			return domain.Page{}, cursor, err
		}
		for _, it := range items {
			if c.retention > 0 && !it.PublishedAt.IsZero() && time.Since(it.PublishedAt) > c.retention {
				nextToken = ""
				break
			}
			state.PendingVideos = append(state.PendingVideos, it.VideoID)
		}
		state.PlaylistToken = nextToken
		state.PlaylistDone = nextToken == ""
		if len(state.PendingVideos) == 0 && state.PlaylistDone {
			return domain.Page{}, domain.Cursor{Done: true}, nil
		}
	}

	raw, nextVideoToken, err := c.commentThreadsPage(ctx, state.VideoID, state.VideoToken)
	if err != nil {
		if domain.IsPermanentFetch(err) {
			// Comments disabled on one video must not fail the channel;
			// move on to the next video.
			c.log.Debug().Str("video", state.VideoID).Err(err).Msg("youtube: comments unavailable, skipping video")
			state.VideoID = ""
			return c.continueCursor(state)
		}
		return domain.Page{}, cursor, err
	}

	state.Fetched += len(raw)
	state.VideoToken = nextVideoToken
	if nextVideoToken == "" || (c.commentsPerVideo > 0 && state.Fetched >= c.commentsPerVideo) {
		state.VideoID = ""
	}

	metrics.FetchPagesTotal.WithLabelValues(string(domain.KindComments)).Inc()
	next, encErr := encodeCursor(state)
	if encErr != nil {
		return domain.Page{}, cursor, encErr
	}
	return domain.Page{Items: raw, NextCursor: next.PageToken}, next, nil
}

func (c *Client) continueCursor(state commentCursor) (domain.Page, domain.Cursor, error) {
	if state.VideoID == "" && len(state.PendingVideos) == 0 && state.PlaylistDone {
		return domain.Page{}, domain.Cursor{Done: true}, nil
	}
	next, err := encodeCursor(state)
	if err != nil {
		return domain.Page{}, domain.Cursor{}, err
	}
	return domain.Page{}, next, nil
}

func encodeCursor(state commentCursor) (domain.Cursor, error) {
	buf, err := json.Marshal(state)
	if err != nil {
		return domain.Cursor{}, &domain.FetchError{Kind: domain.FetchPermanent, Op: "comments_cursor", Reason: "encode cursor", Err: err}
	}
	return domain.Cursor{PageToken: string(buf)}, nil
}

// resolveUploadsPlaylist returns the uploads playlist of a channel, served
// from cache when possible.
func (c *Client) resolveUploadsPlaylist(ctx context.Context, channel domain.Channel) (string, error) {
	cacheKey := "yt:uploads:" + channel.ExternalID
	if c.cache != nil {
		if cached, err := c.cache.Get(cacheKey); err == nil && len(cached) > 0 {
			return string(cached), nil
		} else if err != nil && !errors.Is(err, domain.ErrCacheMiss) {
			c.log.Warn().Err(err).Str("channel", channel.ExternalID).Msg("youtube: uploads cache read failed")
		}
	}

	var resp channelListResponse
	params := url.Values{}
	params.Set("id", channel.ExternalID)
	params.Set("part", "contentDetails")
	if err := c.getJSON(ctx, "channels", params, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", &domain.FetchError{
			Kind: domain.FetchPermanent, Op: "channels.list",
			Reason: fmt.Sprintf("channel %s not found", channel.ExternalID),
		}
	}
	uploads := resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
	if uploads == "" {
		return "", &domain.FetchError{
			Kind: domain.FetchPermanent, Op: "channels.list",
			Reason: fmt.Sprintf("channel %s has no uploads playlist", channel.ExternalID),
		}
	}
	if c.cache != nil {
		if err := c.cache.Set(cacheKey, []byte(uploads), uploadsCacheTTL); err != nil {
			c.log.Warn().Err(err).Str("channel", channel.ExternalID).Msg("youtube: uploads cache write failed")
		}
	}
	return uploads, nil
}

type playlistEntry struct {
	VideoID     string
	PublishedAt time.Time
}

func (c *Client) playlistPage(ctx context.Context, playlistID, pageToken string) ([]playlistEntry, string, error) {
	params := url.Values{}
	params.Set("playlistId", playlistID)
	params.Set("part", "contentDetails")
	params.Set("maxResults", fmt.Sprint(playlistPageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	var resp playlistItemsResponse
	if err := c.getJSON(ctx, "playlistItems", params, &resp); err != nil {
		return nil, "", err
	}
	entries := make([]playlistEntry, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ContentDetails.VideoID == "" {
			continue
		}
		entries = append(entries, playlistEntry{
			VideoID:     it.ContentDetails.VideoID,
			PublishedAt: it.ContentDetails.VideoPublishedAt,
		})
	}
	return entries, resp.NextPageToken, nil
}

func (c *Client) videoDetails(ctx context.Context, ids []string, part string) ([]domain.RawItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("id", strings.Join(ids, ","))
	params.Set("part", part)
	params.Set("maxResults", fmt.Sprint(playlistPageSize))
	var resp rawListResponse
	if err := c.getJSON(ctx, "videos", params, &resp); err != nil {
		return nil, err
	}
	return rawItems(resp.Items)
}

func (c *Client) commentThreadsPage(ctx context.Context, videoID, pageToken string) ([]domain.RawItem, string, error) {
	params := url.Values{}
	params.Set("videoId", videoID)
	params.Set("part", "snippet")
	params.Set("order", "time")
	params.Set("maxResults", fmt.Sprint(commentPageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	var resp rawListResponse
	if err := c.getJSON(ctx, "commentThreads", params, &resp); err != nil {
		return nil, "", err
	}
	items, err := rawItems(resp.Items)
	if err != nil {
		return nil, "", err
	}
	return items, resp.NextPageToken, nil
}

func rawItems(items []json.RawMessage) ([]domain.RawItem, error) {
	out := make([]domain.RawItem, 0, len(items))
	for _, raw := range items {
		var id struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &id); err != nil || id.ID == "" {
			continue
		}
		out = append(out, domain.RawItem{ExternalID: id.ID, Payload: append([]byte(nil), raw...)})
	}
	return out, nil
}

// getJSON performs one API call through the shared retry helper and decodes
// the response.
func (c *Client) getJSON(ctx context.Context, resource string, params url.Values, out any) error {
	op := resource + ".list"
	return withRetry(ctx, c.retry, func() error {
		params.Set("key", c.apiKey)
		reqURL := c.baseURL + "/" + resource + "?" + params.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return &domain.FetchError{Kind: domain.FetchPermanent, Op: op, Reason: "build request", Err: err}
		}
		start := time.Now()
		resp, err := c.http.Do(req)
		metrics.ObserveNetworkRequest("youtube", op, resource, start, err)
		if err != nil {
			return &domain.FetchError{Kind: domain.FetchTransient, Op: op, Reason: "network failure", Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return classifyStatus(op, resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.FetchError{Kind: domain.FetchTransient, Op: op, Reason: "decode response", Err: err}
		}
		return nil
	})
}

// classifyStatus maps a non-200 response to the error taxonomy. Quota
// exhaustion arrives as 403 with a distinct reason code and must stay
// distinguishable from ordinary permanent failures.
func classifyStatus(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	reason := apiErrorReason(body)

	switch {
	case resp.StatusCode >= 500:
		return &domain.FetchError{Kind: domain.FetchTransient, Op: op, Status: resp.StatusCode, Reason: reason}
	case resp.StatusCode == http.StatusForbidden && isQuotaReason(reason):
		return &domain.FetchError{Kind: domain.FetchQuotaExceeded, Op: op, Status: resp.StatusCode, Reason: reason}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &domain.FetchError{Kind: domain.FetchTransient, Op: op, Status: resp.StatusCode, Reason: reason}
	default:
		return &domain.FetchError{Kind: domain.FetchPermanent, Op: op, Status: resp.StatusCode, Reason: reason}
	}
}

func apiErrorReason(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "unparsable error body"
	}
	if len(parsed.Error.Errors) > 0 && parsed.Error.Errors[0].Reason != "" {
		return parsed.Error.Errors[0].Reason
	}
	if parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return "no reason given"
}

func isQuotaReason(reason string) bool {
	switch reason {
	case "quotaExceeded", "dailyLimitExceeded":
		return true
	}
	return false
}

type channelListResponse struct {
	Items []struct {
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID          string    `json:"videoId"`
			VideoPublishedAt time.Time `json:"videoPublishedAt"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type rawListResponse struct {
	NextPageToken string            `json:"nextPageToken"`
	Items         []json.RawMessage `json:"items"`
}
