package capability

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"

	"dreamcanvas/pkg/schema"
)

// ErrUnavailable reports a capability that could not produce output: the
// hosted endpoint returned a non-success, the local engine is missing, or
// the credential was never configured. Stages that see it fall back or skip
// per their own policy instead of aborting the run.
var ErrUnavailable = errors.New("capability unavailable")

// ErrTimeout reports a capability call that exceeded its stage budget.
// The orchestrator treats it exactly like ErrUnavailable.
var ErrTimeout = errors.New("capability timed out")

// ErrEncode reports a video encode failure. Fatal to the video artifact,
// non-fatal to the run.
var ErrEncode = errors.New("video encode failed")

// Captioner describes an uploaded drawing in one short sentence.
type Captioner interface {
	Caption(ctx context.Context, params *openai.ChatCompletionNewParams, system string, image []byte, mime string) (string, error)
}

// Storyteller turns a prompt into narrative text.
type Storyteller interface {
	Tell(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
}

// Synthesizer renders story text to an audio file inside dir (the engine
// picks its own container format) and reports the measured duration of what
// it wrote.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, dir string) (schema.AudioTrack, error)
}

// Composer muxes a still image and an audio track into a video whose
// duration equals the audio duration.
type Composer interface {
	Compose(ctx context.Context, imagePath string, audio schema.AudioTrack, path string) (schema.VideoArtifact, error)
}

// Set bundles the pluggable capabilities a pipeline run consumes.
// Any field may be nil; the orchestrator degrades per stage.
type Set struct {
	Captioner   Captioner
	Storyteller Storyteller
	Synthesizer Synthesizer
	Composer    Composer
}
