package youtube

import (
	"encoding/json"
	"fmt"
	"time"

	"yt-pulse/internal/domain"
)

// Normalization of raw API payloads into domain rows. A malformed item is a
// row-level validation error: the caller counts it and continues, the batch
// never aborts.

type videoPayload struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string    `json:"title"`
		ChannelID    string    `json:"channelId"`
		ChannelTitle string    `json:"channelTitle"`
		PublishedAt  time.Time `json:"publishedAt"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Statistics statisticsPayload `json:"statistics"`
}

type statisticsPayload struct {
	ViewCount    int64 `json:"viewCount,string"`
	LikeCount    int64 `json:"likeCount,string"`
	CommentCount int64 `json:"commentCount,string"`
}

type commentThreadPayload struct {
	ID      string `json:"id"`
	Snippet struct {
		VideoID         string `json:"videoId"`
		TopLevelComment struct {
			Snippet struct {
				TextOriginal      string    `json:"textOriginal"`
				AuthorDisplayName string    `json:"authorDisplayName"`
				AuthorChannelID   struct {
					Value string `json:"value"`
				} `json:"authorChannelId"`
				LikeCount   int64     `json:"likeCount"`
				PublishedAt time.Time `json:"publishedAt"`
			} `json:"snippet"`
		} `json:"topLevelComment"`
	} `json:"snippet"`
}

// ParseVideo normalizes one videos.list item.
func ParseVideo(item domain.RawItem, channelID int64, now time.Time) (domain.Video, error) {
	var p videoPayload
	if err := json.Unmarshal(item.Payload, &p); err != nil {
		return domain.Video{}, fmt.Errorf("video %s: decode payload: %w", item.ExternalID, err)
	}
	if p.ID == "" {
		return domain.Video{}, fmt.Errorf("video item without id")
	}
	if p.Snippet.Title == "" {
		return domain.Video{}, fmt.Errorf("video %s: missing title", p.ID)
	}
	return domain.Video{
		ExternalID:   p.ID,
		ChannelID:    channelID,
		Title:        p.Snippet.Title,
		PublishedAt:  p.Snippet.PublishedAt.UTC(),
		Duration:     p.ContentDetails.Duration,
		ViewCount:    p.Statistics.ViewCount,
		LikeCount:    p.Statistics.LikeCount,
		CommentCount: p.Statistics.CommentCount,
		FetchedAt:    now,
	}, nil
}

// ParseMetricSnapshot builds the dated metrics row from one statistics
// payload.
func ParseMetricSnapshot(item domain.RawItem, day time.Time, now time.Time) (domain.MetricSnapshot, error) {
	var p videoPayload
	if err := json.Unmarshal(item.Payload, &p); err != nil {
		return domain.MetricSnapshot{}, fmt.Errorf("metrics %s: decode payload: %w", item.ExternalID, err)
	}
	if p.ID == "" {
		return domain.MetricSnapshot{}, fmt.Errorf("metrics item without video id")
	}
	if p.Statistics.ViewCount < 0 || p.Statistics.LikeCount < 0 || p.Statistics.CommentCount < 0 {
		return domain.MetricSnapshot{}, fmt.Errorf("metrics %s: negative counts", p.ID)
	}
	return domain.MetricSnapshot{
		VideoID:      p.ID,
		SnapshotDate: day,
		ViewCount:    p.Statistics.ViewCount,
		LikeCount:    p.Statistics.LikeCount,
		CommentCount: p.Statistics.CommentCount,
		FetchedAt:    now,
	}, nil
}

// ParseComment normalizes one commentThreads.list item to its top-level
// comment.
func ParseComment(item domain.RawItem) (domain.Comment, error) {
	var p commentThreadPayload
	if err := json.Unmarshal(item.Payload, &p); err != nil {
		return domain.Comment{}, fmt.Errorf("comment %s: decode payload: %w", item.ExternalID, err)
	}
	if p.ID == "" {
		return domain.Comment{}, fmt.Errorf("comment item without id")
	}
	top := p.Snippet.TopLevelComment.Snippet
	if p.Snippet.VideoID == "" {
		return domain.Comment{}, fmt.Errorf("comment %s: missing video id", p.ID)
	}
	return domain.Comment{
		ExternalID: p.ID,
		VideoID:    p.Snippet.VideoID,
		AuthorID:   top.AuthorChannelID.Value,
		AuthorName: top.AuthorDisplayName,
		Text:       top.TextOriginal,
		PostedAt:   top.PublishedAt.UTC(),
		LikeCount:  top.LikeCount,
	}, nil
}
