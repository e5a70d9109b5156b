package config

// QualityTier controls the model selection and trade-off between speed/cost and quality.
type QualityTier string

const (
	QualityLite   QualityTier = "lite"
	QualityNormal QualityTier = "normal"
	QualityMax    QualityTier = "max"
)

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level mailmatch configuration, corresponding to .mailmatch.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	Quality           QualityTier  `yaml:"quality" koanf:"quality"`
	DataDir           string       `yaml:"data_dir" koanf:"data_dir"`
	MailboxAddress    string       `yaml:"mailbox_address" koanf:"mailbox_address"`
	TopK              int          `yaml:"top_k" koanf:"top_k"`
	AutoReplyScore    float64      `yaml:"auto_reply_score" koanf:"auto_reply_score"`
	MaxConcurrency    int          `yaml:"max_concurrency" koanf:"max_concurrency"`
}
