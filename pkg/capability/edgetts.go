package capability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"

	"dreamcanvas/pkg/schema"
)

// EdgeTTS synthesizes speech with the edge-tts CLI (free Microsoft voices).
// Used when no hosted speech credential is configured.
type EdgeTTS struct {
	bin   string
	voice string
}

func NewEdgeTTS(voice string) (*EdgeTTS, error) {
	bin, err := exec.LookPath("edge-tts")
	if err != nil {
		return nil, fmt.Errorf("%w: edge-tts not found in PATH (pip install edge-tts)", ErrUnavailable)
	}
	if voice == "" {
		voice = "en-US-AnaNeural"
	}
	return &EdgeTTS{bin: bin, voice: voice}, nil
}

// Synthesize writes narration.mp3 inside dir and measures its duration with
// ffprobe.
func (e *EdgeTTS) Synthesize(ctx context.Context, text, dir string) (schema.AudioTrack, error) {
	path := filepath.Join(dir, "narration.mp3")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.bin,
		"--voice", e.voice,
		"--text", text,
		"--write-media", path,
	)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return schema.AudioTrack{}, fmt.Errorf("%w: edge-tts: %v", ErrTimeout, err)
		}
		return schema.AudioTrack{}, fmt.Errorf("%w: edge-tts: %v: %s", ErrUnavailable, err, lastLine(stderr.String()))
	}

	dur, err := ProbeDuration(ctx, path)
	if err != nil {
		return schema.AudioTrack{}, fmt.Errorf("%w: measure duration: %v", ErrUnavailable, err)
	}
	return schema.AudioTrack{Path: path, Duration: dur, Format: "mp3"}, nil
}
