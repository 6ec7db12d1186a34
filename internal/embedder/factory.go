package embedder

import "fmt"

// Settings selects and configures a provider implementation.
type Settings struct {
	Provider     string // "ollama" or "openai"
	OllamaURL    string
	OllamaModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	Dimension    int
}

// NewFromSettings creates the configured embedding provider.
func NewFromSettings(s Settings) (Embedder, error) {
	switch s.Provider {
	case "", "ollama":
		return NewOllamaEmbedder(OllamaConfig{
			BaseURL:   s.OllamaURL,
			Model:     s.OllamaModel,
			Dimension: s.Dimension,
		}), nil
	case "openai":
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:    s.OpenAIAPIKey,
			Model:     s.OpenAIModel,
			Dimension: s.Dimension,
		})
	}
	return nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
}
