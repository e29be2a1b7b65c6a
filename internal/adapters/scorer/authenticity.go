package scorer

import (
	"math"
	"strings"
	"time"

	"yt-pulse/internal/domain"
)

// Feature weights for the combined suspicion score.
const (
	weightDuplicate  = 0.60
	weightBurst      = 0.20
	weightAuthor     = 0.15
	weightEngagement = 0.05

	// Shared-text clusters below this size are treated as coincidence.
	minDupeCluster = 3

	// A whitelist hit keeps the duplicate feature at a fraction of its
	// value instead of zeroing it, so mass-posted fan phrases still
	// register when the cluster is large.
	whitelistFactor = 0.15

	nearDupeThreshold = 0.90
	burstWindow       = 30 * time.Second
	emojiMaxBonus     = 0.15
)

// whitelistPhrases are common fan expressions that show up duplicated
// organically under music uploads.
var whitelistPhrases = []string{
	"love this", "dope", "this is dope", "great song", "love u",
	"🔥", "🌊",
	"fire", "this fire", "straight fire",
	"waves", "wavy", "this waves",
	"crazy", "this crazy", "this is crazy",
	"fye", "this beat is fye",
	"hard", "so hard", "too hard", "this hard",
	"banger", "slaps", "goated",
	"amazing", "incredible", "beautiful", "perfect", "masterpiece",
}

// Authenticity scores bot suspicion for a single comment against a peer
// window of comments from the same channel. Pure computation, no I/O.
type Authenticity struct{}

var _ domain.AuthenticityScorer = (*Authenticity)(nil)

func NewAuthenticity() *Authenticity {
	return &Authenticity{}
}

// Score returns a 0-100 suspicion score with a per-feature breakdown. The
// scale is fixed per comment: the same comment against the same peers
// always yields the same score, and adding more near-duplicates to the
// peer window never lowers it.
func (a *Authenticity) Score(comment domain.Comment, peers []domain.Comment) (float64, domain.AuthenticityBreakdown) {
	norm := normalizeText(comment.Text)
	stripped := stripEmojis(norm)
	whitelisted := containsWhitelisted(norm) || containsWhitelisted(stripped)

	dupes := countNearDuplicates(stripped, comment.ExternalID, peers)
	dupeScore := clamp01(float64(dupes-minDupeCluster+1) / 7.0)
	if whitelisted {
		dupeScore *= whitelistFactor
	}

	burstScore := burstDensity(comment, peers)
	authorScore := authorRepetition(comment, stripped, peers)
	engagement := 1.0 - math.Tanh(float64(comment.LikeCount)/3.0)

	emojiBonus := math.Min(float64(countEmojis(norm))/5.0, emojiMaxBonus)

	raw := weightDuplicate*dupeScore +
		weightBurst*burstScore +
		weightAuthor*authorScore +
		weightEngagement*engagement -
		emojiBonus*0.15

	score := clamp01(raw) * 100.0

	return score, domain.AuthenticityBreakdown{
		DuplicateCount: dupes,
		DuplicateScore: dupeScore,
		BurstScore:     burstScore,
		AuthorScore:    authorScore,
		Whitelisted:    whitelisted,
	}
}

// countNearDuplicates counts peers whose emoji-stripped text is a near
// duplicate by character-trigram cosine similarity. The comment itself is
// excluded by id.
func countNearDuplicates(stripped, selfID string, peers []domain.Comment) int {
	if stripped == "" {
		return 0
	}
	self := trigramVector(stripped)
	count := 0
	for _, p := range peers {
		if p.ExternalID == selfID {
			continue
		}
		other := stripEmojis(normalizeText(p.Text))
		if other == "" {
			continue
		}
		if cosine(self, trigramVector(other)) >= nearDupeThreshold {
			count++
		}
	}
	return count
}

// burstDensity measures how many comments the same author posted within a
// short window around this one. Ten or more in the window saturates.
func burstDensity(comment domain.Comment, peers []domain.Comment) float64 {
	if comment.AuthorID == "" {
		return 0
	}
	count := 0
	for _, p := range peers {
		if p.AuthorID != comment.AuthorID || p.ExternalID == comment.ExternalID {
			continue
		}
		d := comment.PostedAt.Sub(p.PostedAt)
		if d < 0 {
			d = -d
		}
		if d <= burstWindow {
			count++
		}
	}
	return clamp01(float64(count) / 9.0)
}

// authorRepetition is one minus the author's text diversity over the peer
// window. An author who posts the same text over and over scores near one.
func authorRepetition(comment domain.Comment, stripped string, peers []domain.Comment) float64 {
	if comment.AuthorID == "" {
		return 0
	}
	texts := map[string]struct{}{stripped: {}}
	total := 1
	for _, p := range peers {
		if p.AuthorID != comment.AuthorID || p.ExternalID == comment.ExternalID {
			continue
		}
		texts[stripEmojis(normalizeText(p.Text))] = struct{}{}
		total++
	}
	if total <= 1 {
		return 0
	}
	diversity := float64(len(texts)) / float64(total)
	return clamp01(1.0 - diversity)
}

// trigramVector builds a character-trigram frequency vector.
func trigramVector(text string) map[string]float64 {
	runes := []rune(text)
	vec := make(map[string]float64)
	if len(runes) < 3 {
		if len(runes) > 0 {
			vec[string(runes)] = 1
		}
		return vec
	}
	for i := 0; i+3 <= len(runes); i++ {
		vec[string(runes[i:i+3])]++
	}
	return vec
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for k, va := range a {
		normA += va * va
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func containsWhitelisted(text string) bool {
	if text == "" {
		return false
	}
	for _, phrase := range whitelistPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func isEmoji(r rune) bool {
	return (r >= 0x1F300 && r <= 0x1FAFF) ||
		(r >= 0x2600 && r <= 0x27BF)
}

func stripEmojis(text string) string {
	var b strings.Builder
	for _, r := range text {
		if !isEmoji(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func countEmojis(text string) int {
	n := 0
	for _, r := range text {
		if isEmoji(r) {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
