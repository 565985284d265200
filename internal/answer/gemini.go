// Package answer generates grounded answers from assembled prompts.
package answer

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/coursecompass/compass-go/internal/prompt"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash-lite"

// Generator produces an answer for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, assembled string) (string, error)
}

// Gemini implements Generator on the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini constructs a Gemini generator. The API key comes from
// GOOGLE_API_KEY when apiKey is empty; model falls back to DefaultModel.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("answer: GOOGLE_API_KEY is not set")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("answer: create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate sends the assembled prompt to the model and returns its text
// response.
func (g *Gemini) Generate(ctx context.Context, assembled string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(assembled), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.SystemInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("answer: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("answer: model returned no text")
	}
	return text, nil
}
