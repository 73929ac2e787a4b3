package config

// providerKeyEnv lists the conventional API key variables for each provider,
// in lookup order.
var providerKeyEnv = map[string][]string{
	"google":    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"groq":      {"GROQ_API_KEY"},
	"deepseek":  {"DEEPSEEK_API_KEY"},
}

// ProviderKeyEnv returns the environment variables consulted for provider's API key.
func ProviderKeyEnv(provider string) []string {
	return append([]string(nil), providerKeyEnv[provider]...)
}

// applyProviderKeys fills empty API keys from provider specific variables
// found in the process environment or in any loaded .env file.
func (l *loader) applyProviderKeys(cfg *Config) {
	fileValues := make(map[string]string)
	for _, path := range l.envFiles {
		values, err := readEnvFile(path)
		if err != nil {
			continue
		}
		for k, v := range values {
			fileValues[k] = v
		}
	}
	lookup := func(provider string) SensitiveString {
		for _, name := range providerKeyEnv[provider] {
			if v, ok := l.lookupEnv(name); ok && v != "" {
				return SensitiveString(v)
			}
			if v := fileValues[name]; v != "" {
				return SensitiveString(v)
			}
		}
		return ""
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = lookup(cfg.LLM.Provider)
	}
	if cfg.Grader.APIKey == "" && cfg.Grader.Provider != "" && cfg.Grader.Provider != cfg.LLM.Provider {
		cfg.Grader.APIKey = lookup(cfg.Grader.Provider)
	}
	if cfg.Knowledge.Embedder.APIKey == "" {
		if cfg.Knowledge.Embedder.Provider == cfg.LLM.Provider {
			cfg.Knowledge.Embedder.APIKey = cfg.LLM.APIKey
		} else {
			cfg.Knowledge.Embedder.APIKey = lookup(cfg.Knowledge.Embedder.Provider)
		}
	}
}
