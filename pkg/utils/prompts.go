package utils

import (
	"fmt"
	"os"
	"strings"
)

// LoadPrompt reads an analysis prompt template from an exact file path.
// No fallback searching is performed.
func LoadPrompt(filePath string) (string, error) {
	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", fmt.Errorf("file does not exist: %s", filePath)
	}

	// Read file content
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	// Trim whitespace and return
	return strings.TrimSpace(string(content)), nil
}

// LoadPromptWithFallback reads a prompt template file, returning the fallback
// when the file is missing or unreadable. The session module uses this to let
// deployments override the built-in English and Chinese analysis prompts.
func LoadPromptWithFallback(filePath, fallback string) string {
	if content, err := LoadPrompt(filePath); err == nil {
		return content
	}
	return fallback
}
