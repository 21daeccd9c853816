package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"driftwatch/internal/config"
)

// maxResponseBytes caps how much of a reply body is read
const maxResponseBytes = 1 << 20

// HTTP calls a generic JSON endpoint: POST {"prompt": ...} returning
// {"response": ...}
type HTTP struct {
	name     string
	model    string
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTP creates a generic HTTP backend. Timeouts come from the caller's
// context.
func NewHTTP(c config.BackendConfig) *HTTP {
	return &HTTP{
		name:     c.Name,
		model:    c.VendorModel(),
		endpoint: c.BaseURL,
		apiKey:   c.APIKey,
		client:   &http.Client{},
	}
}

func (h *HTTP) Name() string { return h.name }

func (h *HTTP) Respond(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model":  h.model,
		"prompt": prompt,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", &Error{Backend: h.name, Kind: ErrInvalidResponse, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", &Error{Backend: h.name, Kind: ErrUnavailable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", Classify(h.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return "", Classify(h.name, err)
	}
	if len(body) > maxResponseBytes {
		return "", &Error{Backend: h.name, Kind: ErrInvalidResponse, Err: fmt.Errorf("response exceeds %d bytes", maxResponseBytes)}
	}

	if kind := StatusKind(resp.StatusCode); kind != nil {
		return "", &Error{Backend: h.name, Kind: kind, Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))}
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &Error{Backend: h.name, Kind: ErrInvalidResponse, Err: err}
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", &Error{Backend: h.name, Kind: ErrInvalidResponse, Err: errors.New("missing response field")}
	}
	return out.Response, nil
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
