package pipeline

import (
	"fmt"
	"strings"

	"dreamcanvas/pkg/palette"
	"dreamcanvas/pkg/schema"
)

// Describe formats the human-readable summary block for a finished run.
// It is a pure function: identical inputs always produce identical bytes.
// An empty story yields an empty summary line, never an error.
func Describe(caption string, emotion palette.Emotion, story schema.Story) string {
	return strings.TrimSpace(fmt.Sprintf(`
✨ Dive into a magical tale born from a child's imagination!

🎨 Drawing inspired: "%s"
🎭 Emotion detected: %s
📖 Story Summary: %s

🧒 Voice and story generated with DreamCanvas.
`, caption, emotion.Title(), story.FirstLine()))
}
