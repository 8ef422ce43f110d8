package domain

// AIProvider identifies the content analyzer provider
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderOllama AIProvider = "ollama"
	AIProviderGemini AIProvider = "gemini"
)

// LLMSettings configures the completion service behind the content analyzer
type LLMSettings struct {
	Provider AIProvider `json:"provider" yaml:"provider"`
	Model    string     `json:"model" yaml:"model"`
	APIKey   string     `json:"-" yaml:"api_key"` // Never serialize to JSON
	BaseURL  string     `json:"base_url,omitempty" yaml:"base_url"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama:
		return false // Self-hosted, no API key needed
	default:
		return true
	}
}

// IsValid reports whether p is a supported provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderOllama, AIProviderGemini:
		return true
	}
	return false
}
