// Package simulation produces AI "after" previews from patient photos: the
// source photo and a clinical prompt go to an image model, the returned
// render is stored next to the original.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultPrompt is the clinical instruction used when the caller supplies
// none. It keeps renders conservative enough for a consultation deck.
const DefaultPrompt = `Create a practical post-transplant preview for this patient photo.
- Preserve the person's facial features, skin tone, and lighting exactly as captured.
- Add a natural-looking, fuller hair density that matches their likely post-surgery result.
- Use a classic short, clinic-ready hairstyle with visible hairline definition and realistic texture.
- Avoid dramatic styling, facial hair changes, makeup, or accessories.
- Output should feel like a trustworthy medical simulation for a consultation deck.`

// ImageGenerator turns a prompt plus a source image into a rendered image.
// The model is an opaque external collaborator.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, image []byte, mimeType string) ([]byte, string, error)
}

// GeminiImageClient implements ImageGenerator using Google's Gemini image
// model.
type GeminiImageClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiImageClient creates a Gemini-backed image generator.
func NewGeminiImageClient(ctx context.Context, apiKey, modelID string) (*GeminiImageClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("simulation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash-image"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("simulation: failed to create gemini client: %w", err)
	}

	return &GeminiImageClient{client: client, modelID: modelID}, nil
}

// GenerateImage sends the prompt and source photo to Gemini and returns the
// first image part of the response.
func (c *GeminiImageClient) GenerateImage(ctx context.Context, prompt string, image []byte, mimeType string) ([]byte, string, error) {
	if len(image) == 0 {
		return nil, "", errors.New("simulation: source image is required")
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}

	model := c.client.GenerativeModel(c.modelID)
	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: normalizeMIME(mimeType), Data: image},
	)
	if err != nil {
		return nil, "", fmt.Errorf("simulation: gemini generation failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, "", errors.New("simulation: gemini returned no content")
	}

	var refusal string
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Blob:
			if len(p.Data) > 0 {
				mime := p.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return p.Data, mime, nil
			}
		case genai.Text:
			if refusal == "" {
				refusal = strings.TrimSpace(string(p))
			}
		}
	}

	if refusal != "" {
		return nil, "", fmt.Errorf("simulation: gemini declined: %s", refusal)
	}
	return nil, "", errors.New("simulation: gemini did not produce an image")
}

func normalizeMIME(mimeType string) string {
	if strings.TrimSpace(mimeType) == "" {
		return "image/jpeg"
	}
	return mimeType
}
