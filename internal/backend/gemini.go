package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"driftwatch/internal/config"
)

// Gemini calls the Google GenAI API
type Gemini struct {
	name      string
	model     string
	maxTokens int32
	client    *genai.Client
}

// NewGemini creates a Gemini backend
func NewGemini(ctx context.Context, c config.BackendConfig) (*Gemini, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{
		name:      c.Name,
		model:     c.VendorModel(),
		maxTokens: int32(c.MaxOutputTokens),
		client:    client,
	}, nil
}

func (g *Gemini) Name() string { return g.name }

func (g *Gemini) Respond(ctx context.Context, prompt string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if g.maxTokens > 0 {
		cfg = &genai.GenerateContentConfig{MaxOutputTokens: g.maxTokens}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		if code, ok := apiErrorCode(err); ok {
			if kind := StatusKind(code); kind != nil {
				return "", &Error{Backend: g.name, Kind: kind, Err: err}
			}
		}
		return "", Classify(g.name, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &Error{Backend: g.name, Kind: ErrInvalidResponse, Err: errors.New("no candidates")}
	}
	return text, nil
}

func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code, true
	}
	return 0, false
}
