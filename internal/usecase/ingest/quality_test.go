package ingest

import (
	"strings"
	"testing"

	"yt-pulse/internal/domain"
)

func TestEvaluateQualityCleanBatchPasses(t *testing.T) {
	report := EvaluateQuality(domain.QualityStats{
		TotalVideos:     100,
		TotalMetricRows: 100,
	})
	if !report.Passed {
		t.Fatalf("clean batch flagged: %v", report.Reasons)
	}
}

func TestEvaluateQualityNullShareOverTolerance(t *testing.T) {
	report := EvaluateQuality(domain.QualityStats{
		TotalVideos:       20,
		VideosMissingChan: 1, // 5%
	})
	if report.Passed {
		t.Fatalf("5%% null share passed the gate")
	}
	if len(report.Reasons) != 1 || !strings.Contains(report.Reasons[0], "null") {
		t.Fatalf("unexpected reasons: %v", report.Reasons)
	}
}

func TestEvaluateQualityNullShareWithinTolerance(t *testing.T) {
	report := EvaluateQuality(domain.QualityStats{
		TotalVideos:     100,
		VideosMissingID: 1, // 1%
	})
	if !report.Passed {
		t.Fatalf("1%% null share flagged: %v", report.Reasons)
	}
}

func TestEvaluateQualityOrphansAndDuplicatesAreHardFailures(t *testing.T) {
	report := EvaluateQuality(domain.QualityStats{
		TotalVideos:        100,
		OrphanMetricRows:   1,
		DuplicateMetricKey: 2,
		TotalMetricRows:    100,
	})
	if report.Passed {
		t.Fatalf("orphans and duplicates passed the gate")
	}
	if len(report.Reasons) != 2 {
		t.Fatalf("reasons = %v, want orphan and duplicate entries", report.Reasons)
	}
}

func TestEvaluateQualityOutlierShare(t *testing.T) {
	flagged := EvaluateQuality(domain.QualityStats{
		TotalMetricRows:   50,
		OutlierMetricRows: 10, // 20%
	})
	if flagged.Passed {
		t.Fatalf("20%% outliers passed the gate")
	}

	ok := EvaluateQuality(domain.QualityStats{
		TotalMetricRows:   50,
		OutlierMetricRows: 2, // 4%
	})
	if !ok.Passed {
		t.Fatalf("4%% outliers flagged: %v", ok.Reasons)
	}
}

func TestEvaluateQualityEmptyBatchPasses(t *testing.T) {
	report := EvaluateQuality(domain.QualityStats{})
	if !report.Passed {
		t.Fatalf("empty batch flagged: %v", report.Reasons)
	}
}
