package scorer

import (
	"fmt"
	"testing"
	"time"

	"yt-pulse/internal/domain"
)

func makeComment(id, author, text string, at time.Time) domain.Comment {
	return domain.Comment{
		ExternalID: id,
		VideoID:    "vid-1",
		AuthorID:   author,
		AuthorName: author,
		Text:       text,
		PostedAt:   at,
	}
}

func TestScoreBurstDuplicatesHigherThanOrganic(t *testing.T) {
	scorer := NewAuthenticity()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Eight identical comments from distinct authors posted seconds apart.
	var peers []domain.Comment
	for i := 0; i < 8; i++ {
		peers = append(peers, makeComment(
			fmt.Sprintf("dup-%d", i),
			fmt.Sprintf("author-%d", i),
			"check out my channel for free beats",
			base.Add(time.Duration(i)*2*time.Second),
		))
	}
	dupScore, dupBreakdown := scorer.Score(peers[0], peers)

	organic := makeComment("org-1", "fan-1", "the second verse gave me chills, did not expect that key change", base)
	organicPeers := []domain.Comment{
		organic,
		makeComment("org-2", "fan-2", "saw them live last year, the drummer is unreal", base.Add(3*time.Hour)),
		makeComment("org-3", "fan-3", "my dad showed me this band in 2009", base.Add(26*time.Hour)),
	}
	orgScore, _ := scorer.Score(organic, organicPeers)

	if dupScore <= orgScore {
		t.Fatalf("duplicate burst score %.2f not above organic score %.2f", dupScore, orgScore)
	}
	if dupScore-orgScore < 20 {
		t.Fatalf("expected material separation, got %.2f vs %.2f", dupScore, orgScore)
	}
	if dupBreakdown.DuplicateCount < 7 {
		t.Fatalf("expected at least 7 near-duplicates, got %d", dupBreakdown.DuplicateCount)
	}
}

func TestScoreMonotoneInDuplicateCount(t *testing.T) {
	scorer := NewAuthenticity()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	target := makeComment("t-1", "spam-author", "subscribe to my channel now", base)

	prev := -1.0
	for n := 0; n <= 12; n++ {
		peers := []domain.Comment{target}
		for i := 0; i < n; i++ {
			// Distinct authors and spread-out timestamps isolate the
			// duplicate feature.
			peers = append(peers, makeComment(
				fmt.Sprintf("p-%d", i),
				fmt.Sprintf("other-%d", i),
				"subscribe to my channel now",
				base.Add(time.Duration(i+1)*time.Hour),
			))
		}
		score, breakdown := scorer.Score(target, peers)
		if breakdown.DuplicateCount != n {
			t.Fatalf("n=%d: duplicate count %d", n, breakdown.DuplicateCount)
		}
		if score < prev {
			t.Fatalf("n=%d: score %.4f dropped below %.4f", n, score, prev)
		}
		prev = score
	}
}

func TestScoreWhitelistNeverRaises(t *testing.T) {
	scorer := NewAuthenticity()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	build := func(text string) (domain.Comment, []domain.Comment) {
		target := makeComment("w-0", "a-0", text, base)
		peers := []domain.Comment{target}
		for i := 1; i <= 6; i++ {
			peers = append(peers, makeComment(
				fmt.Sprintf("w-%d", i), fmt.Sprintf("a-%d", i), text,
				base.Add(time.Duration(i)*time.Hour),
			))
		}
		return target, peers
	}

	listed, listedPeers := build("this is fire")
	plain, plainPeers := build("buy followers at spamsite dot com")

	listedScore, listedBreakdown := scorer.Score(listed, listedPeers)
	plainScore, _ := scorer.Score(plain, plainPeers)

	if !listedBreakdown.Whitelisted {
		t.Fatalf("expected whitelist hit for %q", listed.Text)
	}
	if listedScore >= plainScore {
		t.Fatalf("whitelisted phrase scored %.2f, not below plain duplicate %.2f", listedScore, plainScore)
	}
}

func TestScoreDeterministic(t *testing.T) {
	scorer := NewAuthenticity()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	target := makeComment("d-1", "a-1", "great song 🔥", base)
	peers := []domain.Comment{
		target,
		makeComment("d-2", "a-2", "great song 🔥", base.Add(time.Minute)),
		makeComment("d-3", "a-3", "who produced this?", base.Add(2*time.Minute)),
	}

	first, _ := scorer.Score(target, peers)
	for i := 0; i < 5; i++ {
		again, _ := scorer.Score(target, peers)
		if again != first {
			t.Fatalf("score changed between runs: %.6f vs %.6f", first, again)
		}
	}
}

func TestScoreEmptyTextLowSuspicion(t *testing.T) {
	scorer := NewAuthenticity()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	target := makeComment("e-1", "a-1", "🔥🔥🔥", base)

	score, breakdown := scorer.Score(target, []domain.Comment{target})
	if breakdown.DuplicateCount != 0 {
		t.Fatalf("emoji-only comment counted duplicates: %d", breakdown.DuplicateCount)
	}
	if score > 20 {
		t.Fatalf("solitary emoji comment scored %.2f", score)
	}
}
