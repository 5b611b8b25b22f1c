package capability

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// Gemini implements captioning and storytelling on Google's genai SDK.
// It has no speech capability; pair it with the edge-tts synthesizer.
type Gemini struct {
	client *genai.Client
	apiKey string
	model  string
}

func NewGemini(apiKey, model string) (*Gemini, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &Gemini{
		client: client,
		apiKey: apiKey,
		model:  model,
	}, nil
}

// Caption sends the drawing bytes inline and asks for a one-sentence
// description.
func (g *Gemini) Caption(ctx context.Context, params *openai.ChatCompletionNewParams, system string, image []byte, mime string) (string, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleModel),
		MaxOutputTokens:   int32(cmp.Or(params.MaxCompletionTokens.Value, 256)),
	}

	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText("Describe this drawing."),
		genai.NewPartFromBytes(image, cmp.Or(mime, "image/png")),
	}, genai.RoleUser)

	result, err := g.client.Models.GenerateContent(
		ctx,
		cmp.Or(params.Model, g.model),
		[]*genai.Content{content},
		config,
	)
	if err != nil {
		return "", wrapGenaiErr(err)
	}
	return result.Text(), nil
}

// Tell generates the story text.
func (g *Gemini) Tell(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleModel),
		MaxOutputTokens:   int32(cmp.Or(params.MaxCompletionTokens.Value, 1024)),
	}
	if params.ResponseFormat.OfJSONSchema != nil {
		config.ResponseMIMEType = "application/json"
	}

	result, err := g.client.Models.GenerateContent(
		ctx,
		cmp.Or(params.Model, g.model),
		genai.Text(user),
		config,
	)
	if err != nil {
		return "", wrapGenaiErr(err)
	}
	return result.Text(), nil
}

func wrapGenaiErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: failed to generate content: %v", ErrUnavailable, err)
}
