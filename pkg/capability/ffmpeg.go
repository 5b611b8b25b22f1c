package capability

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"dreamcanvas/pkg/schema"
)

// FrameRate is the fixed frame rate of composed videos. A still image gains
// nothing from more frames; 24 keeps encoders and players happy.
const FrameRate = 24

// FFmpeg composes the final video by looping the drawing as a still and
// muxing the narration under it with the system ffmpeg binary.
type FFmpeg struct {
	bin string
}

func NewFFmpeg() (*FFmpeg, error) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found in PATH", ErrUnavailable)
	}
	return &FFmpeg{bin: bin}, nil
}

// Compose writes an mp4 at path. The image loops for exactly the audio
// duration (-shortest against an infinite loop), so the video duration
// equals the audio duration and the track is carried unmodified.
func (f *FFmpeg) Compose(ctx context.Context, imagePath string, audio schema.AudioTrack, path string) (schema.VideoArtifact, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.bin, "-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audio.Path,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-preset", "fast",
		"-r", strconv.Itoa(FrameRate),
		// even dimensions required by yuv420p
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		path,
	)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return schema.VideoArtifact{}, fmt.Errorf("%w: ffmpeg: %v: %s", ErrEncode, err, lastLine(stderr.String()))
	}

	return schema.VideoArtifact{
		Path:      path,
		Duration:  audio.Duration,
		FrameRate: FrameRate,
	}, nil
}

// ProbeDuration measures a media file's duration in seconds with ffprobe.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return dur, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
