package repo

import (
	"strings"
	"testing"
)

// The orphan count must be a plain anti-join: a metric row is orphaned
// exactly when no videos row carries its id. Filtering the joined video by
// channel makes the predicate unsatisfiable, because video_id is unique.
func TestQualityStatsQueryOrphansAreAntiJoined(t *testing.T) {
	pos := strings.Index(qualityStatsQuery, "COALESCE")
	if pos < 0 {
		t.Fatalf("quality stats query lost its duplicate-key branch:\n%s", qualityStatsQuery)
	}
	orphan := qualityStatsQuery[:pos]

	if !strings.Contains(orphan, "LEFT JOIN videos") {
		t.Errorf("orphan count must left-join videos:\n%s", orphan)
	}
	if !strings.Contains(orphan, "v.video_id IS NULL") {
		t.Errorf("orphan count must keep only unmatched metric rows:\n%s", orphan)
	}
	if strings.Contains(orphan, "channel_id") {
		t.Errorf("orphan rows have no video to take a channel from:\n%s", orphan)
	}
}
