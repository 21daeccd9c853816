package config

import (
	"fmt"
	"os"
	"strings"
)

// Backend providers understood by the backend registry
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderHTTP   = "http"
	ProviderMock   = "mock"
)

// BackendConfig describes one model under test
type BackendConfig struct {
	// Name is the model name records are stored under (e.g. "gpt-4o-mini")
	Name string `yaml:"name" json:"name"`

	// Provider selects the client implementation
	Provider string `yaml:"provider" json:"provider"`

	// Model is the vendor model identifier, defaults to Name
	Model string `yaml:"model" json:"model"`

	// BaseURL overrides the vendor endpoint (required for http)
	BaseURL string `yaml:"baseUrl" json:"baseUrl"`

	// APIKeyEnv names the environment variable holding the key
	APIKeyEnv string `yaml:"apiKeyEnv" json:"apiKeyEnv"`

	APIKey string `yaml:"-" json:"-"` // Never serialize

	// MaxOutputTokens caps the response length, 0 uses the vendor default
	MaxOutputTokens int `yaml:"maxOutputTokens" json:"maxOutputTokens"`
}

// VendorModel returns the identifier sent to the vendor
func (b BackendConfig) VendorModel() string {
	if b.Model != "" {
		return b.Model
	}
	return b.Name
}

// ResolveKey fills APIKey from the environment
func (b *BackendConfig) ResolveKey() {
	if b.APIKey == "" && b.APIKeyEnv != "" {
		b.APIKey = os.Getenv(b.APIKeyEnv)
	}
}

func (b BackendConfig) validate() error {
	if b.Name == "" {
		return fmt.Errorf("backend name is required")
	}
	switch b.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderMock:
	case ProviderHTTP:
		if b.BaseURL == "" {
			return fmt.Errorf("backend %s: baseUrl is required for http provider", b.Name)
		}
	default:
		return fmt.Errorf("backend %s: unknown provider %q", b.Name, b.Provider)
	}
	return nil
}

// DefaultBackends returns the backends implied by the environment. When no
// vendor key is configured, two mock models are used so the pipeline still runs.
func DefaultBackends() []BackendConfig {
	var backends []BackendConfig

	if os.Getenv("OPENAI_API_KEY") != "" {
		for _, m := range splitList(getEnvOrDefault("OPENAI_MODELS", "gpt-4o-mini")) {
			backends = append(backends, BackendConfig{
				Name:      m,
				Provider:  ProviderOpenAI,
				APIKeyEnv: "OPENAI_API_KEY",
			})
		}
	}

	if os.Getenv("GEMINI_API_KEY") != "" {
		for _, m := range splitList(getEnvOrDefault("GEMINI_MODELS", "gemini-2.0-flash")) {
			backends = append(backends, BackendConfig{
				Name:      m,
				Provider:  ProviderGemini,
				APIKeyEnv: "GEMINI_API_KEY",
			})
		}
	}

	if len(backends) == 0 {
		backends = []BackendConfig{
			{Name: "mock-alpha", Provider: ProviderMock},
			{Name: "mock-beta", Provider: ProviderMock},
		}
	}

	for i := range backends {
		backends[i].ResolveKey()
	}
	return backends
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
