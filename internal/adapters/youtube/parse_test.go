package youtube

import (
	"testing"
	"time"

	"yt-pulse/internal/domain"
)

var parseNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func TestParseVideo(t *testing.T) {
	item := domain.RawItem{ExternalID: "vid-1", Payload: []byte(`{
		"id": "vid-1",
		"snippet": {"title": "Night Drive", "publishedAt": "2026-08-20T10:00:00Z"},
		"contentDetails": {"duration": "PT3M12S"},
		"statistics": {"viewCount": "1200", "likeCount": "45", "commentCount": "7"}
	}`)}

	v, err := ParseVideo(item, 7, parseNow)
	if err != nil {
		t.Fatalf("ParseVideo: %v", err)
	}
	if v.ExternalID != "vid-1" || v.ChannelID != 7 || v.Title != "Night Drive" {
		t.Fatalf("unexpected video: %+v", v)
	}
	if v.ViewCount != 1200 || v.LikeCount != 45 || v.CommentCount != 7 {
		t.Fatalf("counts not decoded: %+v", v)
	}
	if v.Duration != "PT3M12S" {
		t.Fatalf("duration = %q", v.Duration)
	}
}

func TestParseVideoRejectsMissingFields(t *testing.T) {
	cases := map[string]string{
		"no id":    `{"snippet": {"title": "x"}}`,
		"no title": `{"id": "vid-1", "snippet": {}}`,
		"garbage":  `{"id": [1]}`,
	}
	for name, payload := range cases {
		if _, err := ParseVideo(domain.RawItem{ExternalID: "vid-1", Payload: []byte(payload)}, 1, parseNow); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseMetricSnapshotRejectsNegativeCounts(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	item := domain.RawItem{ExternalID: "vid-1", Payload: []byte(`{
		"id": "vid-1",
		"statistics": {"viewCount": "-5"}
	}`)}
	if _, err := ParseMetricSnapshot(item, day, parseNow); err == nil {
		t.Fatalf("negative counts accepted")
	}

	ok := domain.RawItem{ExternalID: "vid-1", Payload: []byte(`{
		"id": "vid-1",
		"statistics": {"viewCount": "100", "likeCount": "3"}
	}`)}
	snap, err := ParseMetricSnapshot(ok, day, parseNow)
	if err != nil {
		t.Fatalf("ParseMetricSnapshot: %v", err)
	}
	if snap.SnapshotDate != day || snap.ViewCount != 100 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestParseComment(t *testing.T) {
	item := domain.RawItem{ExternalID: "c-1", Payload: []byte(`{
		"id": "c-1",
		"snippet": {
			"videoId": "vid-1",
			"topLevelComment": {"snippet": {
				"textOriginal": "this is fire 🔥",
				"authorDisplayName": "fan",
				"authorChannelId": {"value": "UC-fan"},
				"likeCount": 3,
				"publishedAt": "2026-08-20T10:00:00Z"
			}}
		}
	}`)}

	c, err := ParseComment(item)
	if err != nil {
		t.Fatalf("ParseComment: %v", err)
	}
	if c.ExternalID != "c-1" || c.VideoID != "vid-1" || c.AuthorID != "UC-fan" {
		t.Fatalf("unexpected comment: %+v", c)
	}
	if c.Text != "this is fire 🔥" || c.LikeCount != 3 {
		t.Fatalf("unexpected comment body: %+v", c)
	}

	missingVideo := domain.RawItem{ExternalID: "c-2", Payload: []byte(`{"id": "c-2", "snippet": {}}`)}
	if _, err := ParseComment(missingVideo); err == nil {
		t.Fatalf("comment without video id accepted")
	}
}
