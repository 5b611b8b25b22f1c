package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"dreamcanvas/pkg/capability"
	"dreamcanvas/pkg/flight"
	"dreamcanvas/pkg/palette"
	"dreamcanvas/pkg/schema"
	"dreamcanvas/pkg/utils"
)

// Stage names a step of the run, used in events, warnings, and failures.
type Stage string

const (
	StageDecode      Stage = "decode"
	StageCaption     Stage = "caption"
	StageEmotion     Stage = "emotion"
	StageStory       Stage = "story"
	StageAudio       Stage = "audio"
	StageVideo       Stage = "video"
	StageDescription Stage = "description"
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomePartial   Outcome = "partially_succeeded"
	OutcomeFailed    Outcome = "failed"
)

// FallbackCaption stands in when the captioning capability is unavailable.
// It is always surfaced with a warning, never silently.
const FallbackCaption = "A colorful children's drawing"

// Warning records a non-fatal degradation surfaced to the user.
type Warning struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Result is the full record of one run. Every field is derived; nothing is
// mutated after the run finishes except Revisions, which the revise endpoint
// appends to.
type Result struct {
	RunID       string    `json:"run_id"`
	CreatedAt   time.Time `json:"created_at"`
	Outcome     Outcome   `json:"outcome"`
	FailedStage Stage     `json:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty"`

	ImagePath       string                `json:"image_path"`
	Color           palette.RGB           `json:"color"`
	Emotion         palette.Emotion       `json:"emotion"`
	Caption         string                `json:"caption"`
	CaptionFallback bool                  `json:"caption_fallback,omitempty"`
	Story           schema.Story          `json:"story"`
	StoryFallback   bool                  `json:"story_fallback,omitempty"`
	Audio           *schema.AudioTrack    `json:"audio,omitempty"`
	Video           *schema.VideoArtifact `json:"video,omitempty"`
	Description     string                `json:"description"`

	Warnings  []Warning         `json:"warnings,omitempty"`
	Revisions []schema.Revision `json:"revisions,omitempty"`
}

// Request carries one upload into the orchestrator. Dir is this run's own
// artifact directory; nothing outside it is written.
type Request struct {
	RunID     string
	Dir       string
	ImagePath string
	Image     []byte
	MIME      string
}

// Observer receives stage events as they complete, for progress streaming.
// May be nil.
type Observer func(stage Stage, data any)

// Config bounds the orchestrator's external calls. Zero fields get defaults.
type Config struct {
	CaptionTimeout time.Duration
	StoryTimeout   time.Duration
	SpeechTimeout  time.Duration
	VideoTimeout   time.Duration

	// StoryTokenBudget caps the generated story so synthesis stays short.
	StoryTokenBudget int
}

func (c Config) withDefaults() Config {
	if c.CaptionTimeout <= 0 {
		c.CaptionTimeout = 30 * time.Second
	}
	if c.StoryTimeout <= 0 {
		c.StoryTimeout = 45 * time.Second
	}
	if c.SpeechTimeout <= 0 {
		c.SpeechTimeout = 60 * time.Second
	}
	if c.VideoTimeout <= 0 {
		c.VideoTimeout = 90 * time.Second
	}
	if c.StoryTokenBudget <= 0 {
		c.StoryTokenBudget = 400
	}
	return c
}

// Orchestrator runs the drawing-to-video stages in order and owns the
// partial-failure policy. It holds no per-run state; concurrent runs only
// share the caption cache.
type Orchestrator struct {
	caps     capability.Set
	cfg      Config
	captions flight.Cache[string, string]
}

func New(caps capability.Set, cfg Config) *Orchestrator {
	return &Orchestrator{
		caps:     caps,
		cfg:      cfg.withDefaults(),
		captions: flight.NewCache[string, string](),
	}
}

// Run executes decode -> caption -> emotion -> story -> audio -> video ->
// description. Caption and story degrade to documented fallbacks; a failed
// audio stage skips video entirely; a failed video stage keeps the rest.
// Any unmodeled error stops the run with the failing stage named. There are
// no retries.
func (o *Orchestrator) Run(ctx context.Context, req Request, notify Observer) *Result {
	res := &Result{
		RunID:     req.RunID,
		CreatedAt: time.Now().UTC(),
		ImagePath: req.ImagePath,
	}
	if notify == nil {
		notify = func(Stage, any) {}
	}
	defer o.persist(req, res)

	img, err := palette.Decode(bytes.NewReader(req.Image))
	if err != nil {
		return res.fail(StageDecode, err)
	}

	// Caption. Coalesced per image digest so re-uploads of the same drawing
	// skip the hosted call.
	if err := ctx.Err(); err != nil {
		return res.fail(StageCaption, err)
	}
	sum := sha256.Sum256(req.Image)
	caption, err := o.captions.Do(hex.EncodeToString(sum[:]), func() (string, error) {
		if o.caps.Captioner == nil {
			return "", fmt.Errorf("%w: no captioner configured", capability.ErrUnavailable)
		}
		cctx, cancel := context.WithTimeout(ctx, o.cfg.CaptionTimeout)
		defer cancel()
		return o.caps.Captioner.Caption(cctx, nil, captionSystemPrompt, req.Image, req.MIME)
	})
	switch {
	case err == nil:
		res.Caption = strings.TrimSpace(caption)
	case degraded(err):
		res.Caption = FallbackCaption
		res.CaptionFallback = true
		res.warn(StageCaption, "captioning unavailable, using fallback caption")
		log.Warn("caption degraded", "run", req.RunID, "error", err)
	default:
		return res.fail(StageCaption, err)
	}
	notify(StageCaption, res.Caption)

	// Emotion. Pure local heuristic, cannot fail.
	res.Color = palette.Dominant(img)
	res.Emotion = palette.Classify(res.Color)
	notify(StageEmotion, res.Emotion)

	// Story.
	if err := ctx.Err(); err != nil {
		return res.fail(StageStory, err)
	}
	prompt := StoryPrompt(res.Caption, string(res.Emotion))
	raw, err := o.tell(ctx, storySystemPrompt, prompt)
	switch {
	case err == nil:
		res.Story = ParseStory(raw, prompt, o.cfg.StoryTokenBudget)
	case degraded(err):
		res.Story = FallbackStory(res.Caption, res.Emotion)
		res.StoryFallback = true
		res.warn(StageStory, "story generation unavailable, using fallback story")
		log.Warn("story degraded", "run", req.RunID, "error", err)
	default:
		return res.fail(StageStory, err)
	}
	notify(StageStory, res.Story)

	// Audio. A failure here skips video composition: a video with silent or
	// substituted audio is worse than no video.
	if err := ctx.Err(); err != nil {
		return res.fail(StageAudio, err)
	}
	if o.caps.Synthesizer == nil {
		res.warn(StageAudio, "no speech engine configured, skipping audio and video")
	} else {
		actx, cancel := context.WithTimeout(ctx, o.cfg.SpeechTimeout)
		track, err := o.caps.Synthesizer.Synthesize(actx, res.Story.Text, req.Dir)
		cancel()
		switch {
		case err == nil:
			res.Audio = &track
			notify(StageAudio, track)
		case degraded(err):
			res.warn(StageAudio, "speech synthesis failed, skipping audio and video")
			log.Warn("audio degraded", "run", req.RunID, "error", err)
		default:
			return res.fail(StageAudio, err)
		}
	}

	// Video. Only attempted with real audio in hand.
	if res.Audio != nil {
		if err := ctx.Err(); err != nil {
			return res.fail(StageVideo, err)
		}
		if o.caps.Composer == nil {
			res.warn(StageVideo, "no video composer configured, skipping video")
		} else {
			vctx, cancel := context.WithTimeout(ctx, o.cfg.VideoTimeout)
			video, err := o.caps.Composer.Compose(vctx, req.ImagePath, *res.Audio, filepath.Join(req.Dir, "story.mp4"))
			cancel()
			switch {
			case err == nil:
				res.Video = &video
				notify(StageVideo, video)
			case degraded(err) || errors.Is(err, capability.ErrEncode):
				res.warn(StageVideo, "video composition failed, keeping other artifacts")
				log.Warn("video degraded", "run", req.RunID, "error", err)
			default:
				return res.fail(StageVideo, err)
			}
		}
	}

	res.Description = Describe(res.Caption, res.Emotion, res.Story)
	notify(StageDescription, res.Description)

	if res.Audio != nil && res.Video != nil {
		res.Outcome = OutcomeSucceeded
	} else {
		res.Outcome = OutcomePartial
	}
	log.Info("run finished", "run", req.RunID, "outcome", res.Outcome, "warnings", len(res.Warnings))
	return res
}

// Revise regenerates a run's story text according to an instruction.
// Unlike the story stage there is no fallback: a failed revision is
// reported to the caller as an error.
func (o *Orchestrator) Revise(ctx context.Context, story schema.Story, instruction string) (schema.Story, error) {
	prompt := RevisePrompt(story.Text, instruction)
	raw, err := o.tell(ctx, reviseSystemPrompt, prompt)
	if err != nil {
		return schema.Story{}, err
	}
	revised := ParseStory(raw, prompt, o.cfg.StoryTokenBudget)
	if revised.Title == "" {
		revised.Title = story.Title
	}
	return revised, nil
}

func (o *Orchestrator) tell(ctx context.Context, system, user string) (string, error) {
	if o.caps.Storyteller == nil {
		return "", fmt.Errorf("%w: no storyteller configured", capability.ErrUnavailable)
	}
	sctx, cancel := context.WithTimeout(ctx, o.cfg.StoryTimeout)
	defer cancel()
	params := &openai.ChatCompletionNewParams{
		MaxCompletionTokens: openai.Int(int64(o.cfg.StoryTokenBudget)),
		ResponseFormat:      schema.StoryResponseFormat(),
	}
	return o.caps.Storyteller.Tell(sctx, params, system, user)
}

// ParseStory interprets a storyteller response. Structured JSON is
// preferred; anything else is kept as plain text with any prompt echo
// stripped. The text is cut to the token budget either way.
func ParseStory(raw, prompt string, budget int) schema.Story {
	cleaned := utils.CleanJSON(raw)
	var story schema.Story
	if err := json.Unmarshal([]byte(cleaned), &story); err != nil || strings.TrimSpace(story.Text) == "" {
		story = schema.Story{Text: utils.StripEcho(raw, prompt)}
	}
	story.Text = strings.TrimSpace(story.Text)
	if text, err := utils.TruncateTokens(story.Text, budget); err == nil {
		story.Text = text
	}
	return story
}

// FallbackStory is the documented stand-in when story generation is
// unavailable. Deterministic in (caption, emotion).
func FallbackStory(caption string, emotion palette.Emotion) schema.Story {
	return schema.Story{
		Title: "A Little Masterpiece",
		Text: fmt.Sprintf(
			"Once upon a time, someone drew %s. Everyone who looked at it felt %s inside.\n\n"+
				"The drawing hung where the morning light could find it, and whenever it caught someone's eye, "+
				"it reminded them that every picture holds a story waiting to be told.",
			strings.TrimRight(caption, "."), emotion),
	}
}

// degraded reports whether err is a modeled capability failure that the
// run should absorb rather than abort on.
func degraded(err error) bool {
	return errors.Is(err, capability.ErrUnavailable) ||
		errors.Is(err, capability.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (r *Result) warn(stage Stage, msg string) {
	r.Warnings = append(r.Warnings, Warning{Stage: stage, Message: msg})
}

func (r *Result) fail(stage Stage, err error) *Result {
	r.Outcome = OutcomeFailed
	r.FailedStage = stage
	r.Error = err.Error()
	log.Error("run failed", "run", r.RunID, "stage", stage, "error", err)
	return r
}

func (o *Orchestrator) persist(req Request, res *Result) {
	if req.Dir == "" {
		return
	}
	if err := utils.Save(filepath.Join(req.Dir, "run.json"), res); err != nil {
		log.Warn("could not persist run record", "run", req.RunID, "error", err)
	}
}
