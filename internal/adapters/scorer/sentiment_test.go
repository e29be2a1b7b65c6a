package scorer

import (
	"testing"

	"yt-pulse/internal/domain"
)

func TestLabelFireWithEmojisIsConfidentPositive(t *testing.T) {
	labeler := NewSentiment()

	label, confidence := labeler.Label("this is fire 🔥🔥🔥")
	if label != domain.SentimentPositive {
		t.Fatalf("label = %s, want positive", label)
	}
	if confidence <= 0.6 {
		t.Fatalf("confidence = %.2f, want > 0.6", confidence)
	}
}

func TestLabelByRule(t *testing.T) {
	labeler := NewSentiment()

	cases := []struct {
		text string
		want domain.SentimentLabel
	}{
		{"absolute banger", domain.SentimentPositive},
		{"she ate that", domain.SentimentPositive},
		{"on my gym playlist", domain.SentimentPositive},
		{"drop the album already!!", domain.SentimentPositive},
		{"visuals when?!!", domain.SentimentPositive},
		{"who produced this?", domain.SentimentNeutral},
		{"what's the sample?", domain.SentimentNeutral},
		{"lyrics?", domain.SentimentNeutral},
		{"clean version pls", domain.SentimentNeutral},
		{"this is trash", domain.SentimentNegative},
		{"mid", domain.SentimentNegative},
		{"overrated", domain.SentimentNegative},
		{"went double wood", domain.SentimentNegative},
		{"boring and generic", domain.SentimentNegative},
	}
	for _, tc := range cases {
		label, confidence := labeler.Label(tc.text)
		if label != tc.want {
			t.Errorf("%q: label = %s, want %s", tc.text, label, tc.want)
		}
		if confidence < minConfidence || confidence > 1.0 {
			t.Errorf("%q: confidence %.2f out of range", tc.text, confidence)
		}
	}
}

func TestLabelNegationFlipsPraise(t *testing.T) {
	labeler := NewSentiment()

	label, _ := labeler.Label("this is not fire at all")
	if label != domain.SentimentNegative {
		t.Fatalf("negated praise labeled %s, want negative", label)
	}
}

func TestLabelEmptyInputNeutralMinConfidence(t *testing.T) {
	labeler := NewSentiment()

	for _, text := range []string{"", "   ", "🔥🔥🔥", "🌊"} {
		label, confidence := labeler.Label(text)
		if label != domain.SentimentNeutral {
			t.Errorf("%q: label = %s, want neutral", text, label)
		}
		if confidence != minConfidence {
			t.Errorf("%q: confidence = %.2f, want %.2f", text, confidence, minConfidence)
		}
	}
}

func TestLabelUnmatchedTextNeutral(t *testing.T) {
	labeler := NewSentiment()

	label, confidence := labeler.Label("I listened to this on the train yesterday")
	if label != domain.SentimentNeutral {
		t.Fatalf("label = %s, want neutral", label)
	}
	if confidence != minConfidence {
		t.Fatalf("confidence = %.2f, want %.2f", confidence, minConfidence)
	}
}

func TestCalibrateMonotoneAndBounded(t *testing.T) {
	prev := -1.0
	for i := 0; i <= 100; i++ {
		raw := float64(i) / 100.0
		c := calibrate(raw)
		if c < prev {
			t.Fatalf("calibrate(%.2f) = %.4f dropped below %.4f", raw, c, prev)
		}
		if c < minConfidence || c > 1.0 {
			t.Fatalf("calibrate(%.2f) = %.4f out of range", raw, c)
		}
		prev = c
	}
	if got := calibrate(1.0); got >= 1.0 {
		t.Fatalf("unanimous vote must stay below certainty, got %.4f", got)
	}
}

// Reported confidence must track empirical rule accuracy: over comments
// landing in one confidence band, the share of correct labels stays close
// to the confidence the labeler reported for them. The set below mixes
// strong praise with one contrarian cue, so every vote splits roughly
// 80/20 and the calibrated confidence falls in [0.75, 0.85); one comment
// is sarcastic and carries a negative gold label.
func TestLabelConfidenceMatchesEmpiricalAgreement(t *testing.T) {
	labeler := NewSentiment()

	gold := []struct {
		text string
		want domain.SentimentLabel
	}{
		{"went off, no cap, goes hard, such a talent, but lowkey generic", domain.SentimentPositive},
		{"this slaps, absolute banger, a whole vibe and so clean, but the outro is boring", domain.SentimentPositive},
		{"she ate, understood the assignment, this is fire and so dope, but a bit basic", domain.SentimentPositive},
		{"bodied it, periodt, hits different, pure energy, obsessed, but lowkey overrated", domain.SentimentPositive},
		{"killed it, slaps, dope, total anthem, so addicted, but honestly kinda mid", domain.SentimentNegative},
	}

	const bandLow, bandHigh = 0.75, 0.85
	var agreed int
	var confSum float64
	for _, g := range gold {
		label, confidence := labeler.Label(g.text)
		if confidence < bandLow || confidence >= bandHigh {
			t.Fatalf("%q: confidence %.3f outside [%.2f, %.2f)", g.text, confidence, bandLow, bandHigh)
		}
		confSum += confidence
		if label == g.want {
			agreed++
		}
	}

	agreement := float64(agreed) / float64(len(gold))
	meanConfidence := confSum / float64(len(gold))
	if diff := agreement - meanConfidence; diff < -0.1 || diff > 0.1 {
		t.Fatalf("agreement %.3f vs mean confidence %.3f, want within 0.1", agreement, meanConfidence)
	}
}
