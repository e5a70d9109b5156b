package config

// QualityPreset describes the models to use for a given quality tier.
type QualityPreset struct {
	Model          string
	EmbeddingModel string
}

// qualityPresets maps each provider+quality combination to its model choices.
var qualityPresets = map[ProviderType]map[QualityTier]QualityPreset{
	ProviderOpenAI: {
		QualityLite:   {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "gpt-4o", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "gpt-4-turbo-preview", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderOllama: {
		QualityLite:   {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
		QualityNormal: {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
		QualityMax:    {Model: "llama3:70b", EmbeddingModel: "nomic-embed-text"},
	},
}

// GetPreset returns the model preset for the given provider and quality tier.
func GetPreset(provider ProviderType, quality QualityTier) QualityPreset {
	if presets, ok := qualityPresets[provider]; ok {
		if preset, ok := presets[quality]; ok {
			return preset
		}
	}
	return qualityPresets[ProviderOpenAI][QualityNormal]
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		Quality:           QualityNormal,
		DataDir:           ".mailmatch",
		TopK:              5,
		AutoReplyScore:    0.7,
		MaxConcurrency:    4,
	}
}
