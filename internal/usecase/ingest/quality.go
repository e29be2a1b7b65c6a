package ingest

import (
	"fmt"

	"yt-pulse/internal/domain"
	"yt-pulse/internal/infra/metrics"
)

// Gate thresholds. Null tolerance is a share of the batch; orphans and
// duplicate keys are hard zeroes.
const (
	nullShareTolerance = 0.02
	outlierShareMax    = 0.10
)

// EvaluateQuality inspects one channel/day batch and returns the gate
// verdict. A failed gate never rolls written rows back; it only flags the
// run for review.
func EvaluateQuality(stats domain.QualityStats) domain.QualityReport {
	var reasons []string

	flag := func(kind, reason string) {
		reasons = append(reasons, reason)
		metrics.QualityFlagsTotal.WithLabelValues(kind).Inc()
	}

	if stats.TotalVideos > 0 {
		nulls := stats.VideosMissingID + stats.VideosMissingChan + stats.VideosMissingDate
		share := float64(nulls) / float64(stats.TotalVideos)
		if share > nullShareTolerance {
			flag("null_fields", fmt.Sprintf(
				"critical-field nulls %.1f%% over %.1f%% tolerance (%d of %d videos)",
				share*100, nullShareTolerance*100, nulls, stats.TotalVideos))
		}
	}

	if stats.OrphanMetricRows > 0 {
		flag("orphan_metrics", fmt.Sprintf("%d metric rows reference unknown videos", stats.OrphanMetricRows))
	}

	if stats.DuplicateMetricKey > 0 {
		flag("duplicate_metric_key", fmt.Sprintf("%d duplicate (video, date) metric keys", stats.DuplicateMetricKey))
	}

	if stats.TotalMetricRows > 0 {
		share := float64(stats.OutlierMetricRows) / float64(stats.TotalMetricRows)
		if share > outlierShareMax {
			flag("metric_outliers", fmt.Sprintf(
				"metric outliers %.1f%% over %.1f%% threshold (%d of %d rows)",
				share*100, outlierShareMax*100, stats.OutlierMetricRows, stats.TotalMetricRows))
		}
	}

	return domain.QualityReport{Passed: len(reasons) == 0, Reasons: reasons}
}
