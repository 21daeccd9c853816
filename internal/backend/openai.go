package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"driftwatch/internal/config"
)

// OpenAI calls the Responses API
type OpenAI struct {
	name      string
	model     string
	maxTokens int
	client    openai.Client
}

// NewOpenAI creates an OpenAI backend
func NewOpenAI(c config.BackendConfig) (*OpenAI, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(c.APIKey), option.WithMaxRetries(0)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	return &OpenAI{
		name:      c.Name,
		model:     c.VendorModel(),
		maxTokens: c.MaxOutputTokens,
		client:    openai.NewClient(opts...),
	}, nil
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Respond(ctx context.Context, prompt string) (string, error) {
	params := responses.ResponseNewParams{
		Model: o.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if o.maxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(o.maxTokens))
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			if kind := StatusKind(apiErr.StatusCode); kind != nil {
				return "", &Error{Backend: o.name, Kind: kind, Err: err}
			}
		}
		return "", Classify(o.name, err)
	}

	text := resp.OutputText()
	if strings.TrimSpace(text) == "" {
		return "", &Error{Backend: o.name, Kind: ErrInvalidResponse, Err: errors.New("no output text")}
	}
	return text, nil
}
