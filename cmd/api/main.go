package main

import (
	"log"
	"os"

	"github.com/YoungApple/voice-recorder/internal/api"
	"github.com/YoungApple/voice-recorder/pkg/utils"
)

// Start the API server
func main() {
	// Find env file
	envFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		envFile = os.Getenv("ENV_FILE")
	}

	// Load global config
	cfg := utils.NewConfigFromEnv(envFile)

	// A settings file provides defaults for keys the environment leaves unset
	if path := cfg.Get("SETTINGS_FILE"); path != "" {
		fileCfg, err := utils.NewConfigFromFile(path)
		if err != nil {
			log.Fatalf("[API-MAIN]: Failed to load settings file: %v", err)
		}
		for key, value := range fileCfg.ToMap() {
			if cfg.Get(key) == "" {
				cfg.Set(key, value)
			}
		}
	}

	// Start
	api.Start(cfg)
}
