package youtube

import (
	"time"

	"yt-pulse/internal/domain"
)

// Normalizer adapts the payload parsers to the domain port.
type Normalizer struct{}

var _ domain.Normalizer = Normalizer{}

func (Normalizer) Video(item domain.RawItem, channelID int64, now time.Time) (domain.Video, error) {
	return ParseVideo(item, channelID, now)
}

func (Normalizer) MetricSnapshot(item domain.RawItem, day time.Time, now time.Time) (domain.MetricSnapshot, error) {
	return ParseMetricSnapshot(item, day, now)
}

func (Normalizer) Comment(item domain.RawItem) (domain.Comment, error) {
	return ParseComment(item)
}
