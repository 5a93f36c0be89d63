package config

import (
	"github.com/rs/zerolog/log"
)

// GetOpenAIKey returns the API key for the remote assistant service
func GetOpenAIKey() string {
	value := GetEnvOrDefault("OPENAI_KEY", "")
	if value == "" {
		log.Warn().Msg("OPENAI_KEY environment variable not set")
	}
	return value
}

// GetOpenAIBaseURL returns an optional base URL override, used when the
// assistant API is reached through a proxy rather than directly
func GetOpenAIBaseURL() string {
	return GetEnvOrDefault("OPENAI_BASE_URL", "")
}

// GetAssistantModel returns the model identifier used for every assistant
// managed by this service
func GetAssistantModel() string {
	return GetEnvOrDefault("ASSISTANT_MODEL", "gpt-4-1106-preview")
}
