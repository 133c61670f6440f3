// Package gemini implements the captioning and speech ports on top of the
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"multitool/internal/core"
	"multitool/internal/services"
)

const (
	DefaultVisionModel = "gemini-2.5-flash"
	DefaultTTSModel    = "gemini-2.5-flash-preview-tts"

	captionPrompt = "写真を分析して、日本語で説明してください"
)

// voices maps the form's gender choice to a prebuilt voice.
var voices = map[core.VoiceGender]string{
	core.VoiceMale:   "Puck",
	core.VoiceFemale: "Kore",
}

// generator is the subset of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	models      generator
	visionModel string
	ttsModel    string
}

var (
	_ services.Captioner   = (*Client)(nil)
	_ services.Synthesizer = (*Client)(nil)
)

// New creates a Gemini API client. Empty model names fall back to the
// defaults.
func New(ctx context.Context, apiKey, visionModel, ttsModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing Gemini API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newWithGenerator(client.Models, visionModel, ttsModel), nil
}

func newWithGenerator(g generator, visionModel, ttsModel string) *Client {
	if visionModel == "" {
		visionModel = DefaultVisionModel
	}
	if ttsModel == "" {
		ttsModel = DefaultTTSModel
	}
	return &Client{models: g, visionModel: visionModel, ttsModel: ttsModel}
}

// Caption asks the vision model to describe the image in Japanese.
func (c *Client) Caption(ctx context.Context, image []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: captionPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     image,
					},
				},
			},
		},
	}

	resp, err := c.models.GenerateContent(ctx, c.visionModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("caption: generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("caption: empty response from model")
	}
	return text, nil
}

// Synthesize reads text aloud with the voice mapped from gender and
// returns it as a WAV file.
func (c *Client) Synthesize(ctx context.Context, text string, voice core.VoiceGender) (services.Audio, error) {
	name, ok := voices[voice]
	if !ok {
		return services.Audio{}, fmt.Errorf("%w: unknown voice %q", core.ErrInvalidInput, voice)
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: text}}},
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: name},
			},
		},
	}

	resp, err := c.models.GenerateContent(ctx, c.ttsModel, contents, config)
	if err != nil {
		return services.Audio{}, fmt.Errorf("speech: generate content: %w", err)
	}
	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return services.Audio{}, errors.New("speech: no audio in response")
	}

	return services.Audio{
		Data:        EncodeWAV(blob.Data, sampleRate(blob.MIMEType)),
		Extension:   ".wav",
		ContentType: "audio/wav",
	}, nil
}

func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil {
				return part.InlineData
			}
		}
	}
	return nil
}
