package catalog

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds process-environment overrides. API key variables seed
// default credentials on first run so a fresh install works without a
// single apply.
type Env struct {
	ConfigDir string `env:"PARLEY_CONFIG_DIR"`
	Profile   string `env:"PARLEY_PROFILE"`
	LogLevel  string `env:"PARLEY_LOG_LEVEL"`

	OpenAIAPIKey     string `env:"PARLEY_OPENAI_API_KEY"`
	AnthropicAPIKey  string `env:"PARLEY_ANTHROPIC_API_KEY"`
	GoogleAPIKey     string `env:"PARLEY_GOOGLE_API_KEY"`
	ElevenLabsAPIKey string `env:"PARLEY_ELEVENLABS_API_KEY"`
	XAIAPIKey        string `env:"PARLEY_XAI_API_KEY"`
}

// LoadEnv reads the PARLEY_* variables.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("catalog: parse environment: %w", err)
	}
	return e, nil
}

// SeedCreds writes a "default" credential for each API key present in
// the environment, unless one already exists. Stored credentials win;
// the environment only fills gaps.
func (e Env) SeedCreds(ctx context.Context, c *Catalog) error {
	seeds := []struct {
		service string
		apiKey  string
	}{
		{"openai", e.OpenAIAPIKey},
		{"anthropic", e.AnthropicAPIKey},
		{"google", e.GoogleAPIKey},
		{"elevenlabs", e.ElevenLabsAPIKey},
		{"xai", e.XAIAPIKey},
	}
	for _, seed := range seeds {
		if seed.apiKey == "" {
			continue
		}
		if _, err := c.Get(ctx, "creds/"+seed.service+"/default"); err == nil {
			continue
		}
		_, err := c.Apply(ctx, []Document{{
			Kind: "creds/" + seed.service,
			Fields: map[string]any{
				"name":    "default",
				"api_key": seed.apiKey,
			},
		}})
		if err != nil {
			return fmt.Errorf("catalog: seed %s credential: %w", seed.service, err)
		}
	}
	return nil
}
