package palette

import "strings"

// Emotion is a coarse tone category inferred from a drawing's dominant color.
type Emotion string

const (
	EmotionExcited Emotion = "excited"
	EmotionCalm    Emotion = "calm"
	EmotionHappy   Emotion = "happy"
	EmotionNeutral Emotion = "neutral"
)

// Emotions lists every label Classify can return.
var Emotions = []Emotion{EmotionExcited, EmotionCalm, EmotionHappy, EmotionNeutral}

// Title returns the label with its first letter upper-cased, for display.
func (e Emotion) Title() string {
	s := string(e)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Classify maps a dominant color to an emotion label.
//
// Rules run top to bottom and the first match wins:
//
//	r > 200 && g < 100  -> excited
//	b > 150             -> calm
//	g > 150             -> happy
//	otherwise           -> neutral
//
// This is a deliberate crayon-box heuristic, not semantic understanding.
// Every color maps to exactly one label; the final branch is unconditional.
func Classify(c RGB) Emotion {
	switch {
	case c.R > 200 && c.G < 100:
		return EmotionExcited
	case c.B > 150:
		return EmotionCalm
	case c.G > 150:
		return EmotionHappy
	default:
		return EmotionNeutral
	}
}
