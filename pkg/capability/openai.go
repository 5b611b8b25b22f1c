package capability

import (
	"cmp"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"dreamcanvas/pkg/schema"
)

// OpenAI implements the captioning, storytelling, and speech capabilities
// against OpenAI's API (or any compatible endpoint via ChangeBaseURL).
type OpenAI struct {
	client      *openai.Client
	apiKey      string
	chatModel   string
	speechModel openai.SpeechModel
	voice       openai.AudioSpeechNewParamsVoice
}

// NewOpenAI creates a capability provider backed by the official OpenAI SDK.
func NewOpenAI(apiKey, chatModel string) *OpenAI {
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		client:      &client,
		apiKey:      apiKey,
		chatModel:   chatModel,
		speechModel: openai.SpeechModelTTS1,
		voice:       openai.AudioSpeechNewParamsVoiceAlloy,
	}
}

func (o *OpenAI) ChangeBaseURL(baseURL string) {
	client := openai.NewClient(
		option.WithAPIKey(o.apiKey),
		option.WithBaseURL(baseURL),
	)
	o.client = &client
}

func (o *OpenAI) SetModel(model string) {
	o.chatModel = model
}

// Caption sends the drawing as an inline data URL to the vision chat
// endpoint and returns a one-sentence description.
func (o *OpenAI) Caption(ctx context.Context, params *openai.ChatCompletionNewParams, system string, image []byte, mime string) (string, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	} else {
		params = &(*params)
	}
	params.Model = cmp.Or(params.Model, o.chatModel)

	dataURL := fmt.Sprintf("data:%s;base64,%s", cmp.Or(mime, "image/png"), base64.StdEncoding.EncodeToString(image))
	params.Messages = []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Role: "system",
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.Opt[string]{Value: system},
				},
			}},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Role: "user",
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						{
							OfText: &openai.ChatCompletionContentPartTextParam{
								Text: "Describe this drawing.",
							},
						},
						{
							OfImageURL: &openai.ChatCompletionContentPartImageParam{
								ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
									URL: dataURL,
								},
							},
						},
					},
				},
			},
		},
	}

	params.MaxCompletionTokens = openai.Int(cmp.Or(params.MaxCompletionTokens.Value, 256))
	params.Temperature = openai.Float(cmp.Or(params.Temperature.Value, 0.3))

	return o.complete(ctx, params)
}

// Tell sends the story prompt to the chat completion endpoint.
func (o *OpenAI) Tell(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	} else {
		params = &(*params)
	}
	params.Model = cmp.Or(params.Model, o.chatModel)
	params.Messages = []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Role: "system",
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.Opt[string]{Value: system},
				},
			}},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Role: "user",
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: param.Opt[string]{Value: user},
				},
			},
		},
	}

	params.MaxCompletionTokens = openai.Int(cmp.Or(params.MaxCompletionTokens.Value, 1024))
	params.Temperature = openai.Float(cmp.Or(params.Temperature.Value, 0.7))
	params.TopP = openai.Float(cmp.Or(params.TopP.Value, 1.0))

	return o.complete(ctx, params)
}

func (o *OpenAI) complete(ctx context.Context, params *openai.ChatCompletionNewParams) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrUnavailable)
	}
	if resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion content", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// Synthesize renders the story through the speech endpoint and writes
// narration.wav inside dir. Duration is measured from the written file with
// ffprobe.
func (o *OpenAI) Synthesize(ctx context.Context, text, dir string) (schema.AudioTrack, error) {
	path := filepath.Join(dir, "narration.wav")
	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          o.speechModel,
		Voice:          o.voice,
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return schema.AudioTrack{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return schema.AudioTrack{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	f, err := os.Create(path)
	if err != nil {
		return schema.AudioTrack{}, fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return schema.AudioTrack{}, fmt.Errorf("write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return schema.AudioTrack{}, fmt.Errorf("close audio file: %w", err)
	}

	dur, err := ProbeDuration(ctx, path)
	if err != nil {
		return schema.AudioTrack{}, fmt.Errorf("%w: measure duration: %v", ErrUnavailable, err)
	}
	return schema.AudioTrack{Path: path, Duration: dur, Format: "wav"}, nil
}
