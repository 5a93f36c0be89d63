package config

import (
	"os"
)

// GetSiteID identifies the host site in knowledge file names and in the
// metadata attached to remote assistants
func GetSiteID() string {
	return GetEnvOrDefault("SITE_ID", "1")
}

// GetKnowledgeDir returns the directory where generated knowledge files are written
func GetKnowledgeDir() string {
	return GetEnvOrDefault("KNOWLEDGE_DIR", os.TempDir())
}

// GetServerPort returns the port the event webhook server listens on
func GetServerPort() string {
	return GetEnvOrDefault("PORT", "8080")
}
