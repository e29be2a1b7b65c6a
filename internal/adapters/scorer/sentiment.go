package scorer

import (
	"regexp"
	"strings"

	"yt-pulse/internal/domain"
)

// labelingFunction is one weak-supervision rule: a pattern voting for a
// label with a fixed confidence weight.
type labelingFunction struct {
	re         *regexp.Regexp
	label      domain.SentimentLabel
	confidence float64
}

func lf(pattern string, label domain.SentimentLabel, confidence float64) labelingFunction {
	return labelingFunction{
		re:         regexp.MustCompile(`(?i)` + pattern),
		label:      label,
		confidence: confidence,
	}
}

// The rule set is fixed: music-slang praise, engagement indicators,
// enthusiastic requests, plain informational requests and negative
// indicators. Tuning means editing this table, not retraining.
var labelingFunctions = []labelingFunction{
	// In-group praise
	lf(`\b(snapped|ate|served|killed it|bodied|went off)\b`, domain.SentimentPositive, 0.9),
	lf(`\b(slay|periodt|no cap|ate that|understood the assignment)\b`, domain.SentimentPositive, 0.85),

	// Music-specific positive slang
	lf(`\b(fire|lit|slaps|bangs|hits different|goes hard|hard af)\b`, domain.SentimentPositive, 0.8),
	lf(`\b(sick|crazy|insane|wild|dope|clean)\b`, domain.SentimentPositive, 0.7),
	lf(`\b(bop|anthem|vibe|mood|energy|talent)\b`, domain.SentimentPositive, 0.75),
	lf(`\b(banger|absolute banger|this is it)\b`, domain.SentimentPositive, 0.85),

	// Engagement indicators
	lf(`\b(playlist|repeat|loop|obsessed|addicted)\b`, domain.SentimentPositive, 0.7),
	lf(`\b(on repeat|can'?t stop|playing this)\b`, domain.SentimentPositive, 0.75),

	// Enthusiastic requests
	lf(`\b(drop|release)\b.*\b(already|now|please)\b.*!{2,}`, domain.SentimentPositive, 0.8),
	lf(`\bvisuals\s+when\?+!+`, domain.SentimentPositive, 0.8),
	lf(`\bthese\s+lyrics!+`, domain.SentimentPositive, 0.75),

	// Plain requests
	lf(`^\s*who\s+(produced|mixed|made)\s+this\s*\??\s*$`, domain.SentimentNeutral, 0.8),
	lf(`^\s*what'?s\s+the\s+sample\s*\??\s*$`, domain.SentimentNeutral, 0.8),
	lf(`^\s*lyrics\s*\??\s*$`, domain.SentimentNeutral, 0.7),
	lf(`^\s*clean\s+version(\s+pls)?\s*\??\s*$`, domain.SentimentNeutral, 0.7),
	lf(`^\s*when\s+does\s+this\s+come\s+out\s*\??\s*$`, domain.SentimentNeutral, 0.7),

	// Negative indicators
	lf(`\b(trash|garbage|wack|mid|overrated|flop)\b`, domain.SentimentNegative, 0.85),
	lf(`\b(boring|generic|basic|cringe)\b`, domain.SentimentNegative, 0.75),
	lf(`\b(who approved this|went double wood|fell off)\b`, domain.SentimentNegative, 0.9),
	lf(`\b(hate|terrible|awful|worst)\b`, domain.SentimentNegative, 0.8),
}

var (
	exclamationRe = regexp.MustCompile(`!`)
	// RE2 has no backreferences, so "same letter repeated 3+ times" is
	// spelled out as a per-letter alternation (equivalent to `([a-z])\1{2,}`).
	elongationRe = regexp.MustCompile(`a{3,}|b{3,}|c{3,}|d{3,}|e{3,}|f{3,}|g{3,}|h{3,}|i{3,}|j{3,}|k{3,}|l{3,}|m{3,}|n{3,}|o{3,}|p{3,}|q{3,}|r{3,}|s{3,}|t{3,}|u{3,}|v{3,}|w{3,}|x{3,}|y{3,}|z{3,}`)
	capsWordRe   = regexp.MustCompile(`\b[A-Z]{2,}\b`)
	fireEmojiRe  = regexp.MustCompile(`🔥`)
	negationRe   = regexp.MustCompile(`(?i)\b(not|ain'?t|isn'?t|never)\s+(even\s+)?(fire|lit|good|great|it|dope|hard)\b`)
)

// minConfidence is reported for texts no rule can say anything about.
const minConfidence = 0.34

// calibrationCurve maps the raw winning-vote share to a reported
// confidence. Fixed, monotonic non-decreasing, anchored so that a bare
// majority reports near coin-flip confidence and a unanimous vote stays
// below certainty. The anchors track observed rule accuracy on a held-out
// comment sample.
var calibrationCurve = []struct{ raw, calibrated float64 }{
	{0.00, minConfidence},
	{0.34, minConfidence},
	{0.50, 0.52},
	{0.75, 0.71},
	{1.00, 0.92},
}

// Sentiment labels comment text with the fixed weak-supervision rule set.
// Pure function, deterministic for a given text.
type Sentiment struct{}

var _ domain.SentimentLabeler = (*Sentiment)(nil)

func NewSentiment() *Sentiment {
	return &Sentiment{}
}

// Label classifies one comment text. Empty or non-textual input is neutral
// at minimum confidence; an exact weight tie resolves to neutral.
func (s *Sentiment) Label(text string) (domain.SentimentLabel, float64) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || stripEmojis(normalizeText(trimmed)) == "" {
		return domain.SentimentNeutral, minConfidence
	}

	var pos, neg, neu float64
	for _, fn := range labelingFunctions {
		if !fn.re.MatchString(trimmed) {
			continue
		}
		switch fn.label {
		case domain.SentimentPositive:
			pos += fn.confidence
		case domain.SentimentNegative:
			neg += fn.confidence
		default:
			neu += fn.confidence
		}
	}

	// Negated praise reads as criticism: move the positive evidence to
	// the negative side.
	if negationRe.MatchString(trimmed) && pos > 0 {
		neg += pos
		pos = 0
	}

	if booster := boosterScore(trimmed); booster > 0.5 {
		pos += booster * 0.5
	}

	total := pos + neg + neu
	if total == 0 {
		return domain.SentimentNeutral, minConfidence
	}

	label := domain.SentimentNeutral
	max := neu
	if pos > max {
		label = domain.SentimentPositive
		max = pos
	}
	if neg > max {
		label = domain.SentimentNegative
		max = neg
	}
	// Exact positive/negative tie stays neutral.
	if pos == neg && pos == max && label != domain.SentimentNeutral {
		label = domain.SentimentNeutral
	}

	return label, calibrate(max / total)
}

// boosterScore measures enthusiasm intensity: exclamations, letter
// elongation, shouting and fire emojis.
func boosterScore(text string) float64 {
	lower := strings.ToLower(text)

	score := float64(len(exclamationRe.FindAllString(text, -1))) * 0.2
	score += float64(len(elongationRe.FindAllString(lower, -1))) * 0.3
	score += float64(len(capsWordRe.FindAllString(text, -1))) * 0.4
	score += float64(len(fireEmojiRe.FindAllString(text, -1))) * 0.5

	for _, w := range []string{"now", "already", "asap", "please"} {
		if strings.Contains(lower, w) {
			score += 0.3
		}
	}
	return score
}

// calibrate interpolates the raw winning share through the fixed curve.
func calibrate(raw float64) float64 {
	raw = clamp01(raw)
	curve := calibrationCurve
	for i := 1; i < len(curve); i++ {
		if raw <= curve[i].raw {
			prev, next := curve[i-1], curve[i]
			span := next.raw - prev.raw
			if span == 0 {
				return next.calibrated
			}
			t := (raw - prev.raw) / span
			return prev.calibrated + t*(next.calibrated-prev.calibrated)
		}
	}
	return curve[len(curve)-1].calibrated
}
