package config

import (
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .mailmatch.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to mailmatch! Let's configure your mailbox.")
	fmt.Println()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	// 2. Quality tier.
	qualityPrompt := promptui.Select{
		Label: "Select quality tier",
		Items: []string{
			"lite   — fast & cheap (gpt-4o-mini)",
			"normal — balanced (gpt-4o)",
			"max    — highest quality (gpt-4-turbo)",
		},
	}
	qualityIdx, _, err := qualityPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("quality selection: %w", err)
	}
	tiers := []QualityTier{QualityLite, QualityNormal, QualityMax}
	quality := tiers[qualityIdx]

	preset := GetPreset(provider, quality)

	// 3. Mailbox address, used as the recipient on imported mail.
	addressPrompt := promptui.Prompt{
		Label:   "Mailbox address",
		Default: "me@example.com",
	}
	address, err := addressPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("address prompt: %w", err)
	}

	// 4. Data directory.
	dataDirPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: ".mailmatch",
	}
	dataDir, err := dataDirPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir prompt: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Model = preset.Model
	cfg.EmbeddingProvider = provider
	cfg.EmbeddingModel = preset.EmbeddingModel
	cfg.Quality = quality
	cfg.MailboxAddress = address
	cfg.DataDir = dataDir

	if envVar := APIKeyEnvVar(provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: %s is not set. Set it before running serve or import.\n", envVar)
	}

	if err := cfg.Save(".mailmatch.yml"); err != nil {
		return nil, err
	}
	fmt.Println("\nConfiguration saved to .mailmatch.yml")

	return cfg, nil
}
