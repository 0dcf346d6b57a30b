package catalog

import "github.com/parleyhq/parley/pkg/kv"

// credSchema builds the schema for one vendor's credential kind. Creds
// are keyed creds/<service>/<name> and referenced from other documents
// as "<service>:<name>".
func credSchema(service string, required, optional []string) *Schema {
	return &Schema{
		Kind:     "creds/" + service,
		Required: append([]string{"name"}, required...),
		Optional: optional,
		KeyFunc: func(f map[string]any) kv.Key {
			return kv.Key{"creds", service, f["name"].(string)}
		},
	}
}

func namedKey(kind string) func(map[string]any) kv.Key {
	return func(f map[string]any) kv.Key {
		return kv.Key{kind, f["name"].(string)}
	}
}

func registerBuiltinSchemas(r *SchemaRegistry) {
	// --- creds ---

	r.Register(credSchema("openai", []string{"api_key"}, []string{"base_url", "organization", "project"}))
	r.Register(credSchema("anthropic", []string{"api_key"}, []string{"base_url", "version"}))
	r.Register(credSchema("google", []string{"api_key"}, []string{"project_id", "location", "credentials_json"}))
	r.Register(credSchema("elevenlabs", []string{"api_key"}, []string{"base_url"}))
	r.Register(credSchema("xai", []string{"api_key"}, []string{"base_url"}))
	r.Register(credSchema("ollama", nil, []string{"base_url", "api_key"}))
	r.Register(credSchema("aws", []string{"access_key_id", "secret_access_key"}, []string{"region", "bucket", "endpoint"}))

	// --- model: one provider model card ---

	r.Register(&Schema{
		Kind:     "model",
		Required: []string{"name", "provider", "model", "cred"},
		Optional: []string{"temperature", "max_tokens", "vision", "tools", "base_url"},
		KeyFunc:  namedKey("model"),
		ValidateFn: chainValidators(
			validateCredFormat,
			validateTemperature,
			validateMaxTokens,
			validateEnum("provider", "openai", "anthropic", "google", "ollama", "xai"),
		),
	})

	// --- preset: prompt preset over a model ---

	r.Register(&Schema{
		Kind:     "preset",
		Required: []string{"name", "model"},
		Optional: []string{"system", "temperature", "max_tokens", "tools", "plugins"},
		KeyFunc:  namedKey("preset"),
		ValidateFn: chainValidators(
			validateTemperature,
			validateMaxTokens,
		),
	})

	// --- voice: a TTS or STT provider binding ---

	r.Register(&Schema{
		Kind:     "voice",
		Required: []string{"name", "kind", "provider", "cred"},
		Optional: []string{"model", "voice", "format", "language"},
		KeyFunc:  namedKey("voice"),
		ValidateFn: chainValidators(
			validateCredFormat,
			validateEnum("kind", "tts", "stt"),
			validateEnum("provider", "openai", "elevenlabs", "google"),
		),
	})

	// --- realtime: a realtime session profile ---

	r.Register(&Schema{
		Kind:     "realtime",
		Required: []string{"name", "cred"},
		Optional: []string{"model", "voice", "instructions", "turn_detection", "transcribe", "tools", "commit_period_ms"},
		KeyFunc:  namedKey("realtime"),
		ValidateFn: chainValidators(
			validateCredFormat,
			validateEnum("turn_detection", "server_vad", "semantic_vad", "none"),
		),
	})

	// --- plugin: a tool-plugin configuration ---

	r.Register(&Schema{
		Kind:     "plugin",
		Required: []string{"name", "plugin"},
		Optional: []string{"enabled", "options"},
		KeyFunc:  namedKey("plugin"),
	})
}
