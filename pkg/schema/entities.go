package schema

import (
	"strings"

	"dreamcanvas/pkg/diff"
)

// Story is the structured payload requested from the storytelling capability.
type Story struct {
	Title string `json:"title" jsonschema_description:"Short whimsical title for the story"`
	Text  string `json:"text" jsonschema_description:"The story itself, two to four short paragraphs suitable for reading aloud to a child"`
}

// FirstLine returns the first non-empty line of the story text.
func (s Story) FirstLine() string {
	for _, line := range strings.Split(s.Text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// AudioTrack is synthesized narration written to disk.
type AudioTrack struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration_sec"`
	Format   string  `json:"format"`
}

// VideoArtifact is the final still-image video. Its duration always equals
// the duration of the audio track it was muxed from.
type VideoArtifact struct {
	Path      string  `json:"path"`
	Duration  float64 `json:"duration_sec"`
	FrameRate int     `json:"frame_rate"`
}

// Revision is one user-requested rewrite of a run's story.
type Revision struct {
	ID          string           `json:"id"`
	Instruction string           `json:"instruction"`
	Story       Story            `json:"story"`
	Diff        []diff.WordDelta `json:"diff"`
	CreatedAt   string           `json:"created_at"`
}
