package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/YoungApple/voice-recorder/internal/analyze"
	"github.com/YoungApple/voice-recorder/internal/backfill"
	"github.com/YoungApple/voice-recorder/internal/language"
	"github.com/YoungApple/voice-recorder/internal/pipeline"
	"github.com/YoungApple/voice-recorder/internal/storage"
	"github.com/YoungApple/voice-recorder/internal/transcribe"
	"github.com/YoungApple/voice-recorder/pkg/utils"
)

// Backfill runner: reprocesses sessions whose transcription or analysis is
// missing. Runs once by default; set BACKFILL_SCHEDULE to a cron expression
// to keep it running.
func main() {
	// Find env file
	envFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		envFile = os.Getenv("ENV_FILE")
	}

	// Load global config
	cfg := utils.NewConfigFromEnv(envFile)

	// Create MySQL config
	dbConfig := mysql.Config{
		User:      cfg.Get("MYSQL_USER"),
		Passwd:    cfg.Get("MYSQL_ROOT_PASSWORD"),
		Net:       "tcp",
		Addr:      fmt.Sprintf("%s:%s", cfg.Get("MYSQL_HOST"), cfg.Get("MYSQL_PORT")),
		DBName:    cfg.Get("MYSQL_DATABASE"),
		ParseTime: true,
	}

	store, err := storage.NewStore(dbConfig.FormatDSN())
	if err != nil {
		log.Fatalf("[BACKFILL]: Failed to initialize store: %v", err)
	}

	runner := backfill.New(store, newPipeline(cfg, store))

	// One-shot mode unless a schedule is configured
	schedule := cfg.Get("BACKFILL_SCHEDULE")
	if schedule == "" {
		if _, err := runner.RunOnce(context.Background()); err != nil {
			log.Fatalf("[BACKFILL]: Pass failed: %v", err)
		}
		return
	}

	if err := runner.Start(schedule); err != nil {
		log.Fatalf("[BACKFILL]: %v", err)
	}

	// Run until interrupted
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	runner.Stop()
}

// newPipeline builds a coordinator without a recorder; backfill only
// re-runs transcription and analysis
func newPipeline(cfg *utils.Config, store *storage.Store) *pipeline.Coordinator {
	detector := language.NewDetector(
		cfg.GetFloat64WithDefault("CHINESE_THRESHOLD", language.DefaultChineseThreshold))

	var transcriber transcribe.Provider
	switch cfg.GetWithDefault("TRANSCRIBE_PROVIDER", "whisper-cpp") {
	case "openai":
		transcriber = transcribe.NewOpenAIProvider(cfg.Get("OPENAI_API_KEY"), nil)
	case "whisper-cpp":
		transcriber = transcribe.NewWhisperCppProvider(
			cfg.GetWithDefault("WHISPER_CPP_PATH", "whisper-cli"),
			cfg.Get("WHISPER_MODEL_PATH"), nil)
	default:
		log.Fatalf("[BACKFILL]: Unknown transcription provider %q", cfg.Get("TRANSCRIBE_PROVIDER"))
	}

	var textProvider analyze.TextProvider
	switch cfg.GetWithDefault("ANALYSIS_PROVIDER", "ollama") {
	case "openai":
		textProvider = analyze.NewOpenAIProvider(cfg.Get("OPENAI_API_KEY"), cfg.Get("OPENAI_ANALYSIS_MODEL"))
	case "ollama":
		textProvider = analyze.NewOllamaProvider(
			cfg.GetWithDefault("OLLAMA_ENDPOINT", "http://localhost:11434"),
			cfg.GetWithDefault("OLLAMA_MODEL", "qwen3:8b"),
			cfg.GetDurationWithDefault("OLLAMA_TIMEOUT", 2*time.Minute))
	default:
		log.Fatalf("[BACKFILL]: Unknown analysis provider %q", cfg.Get("ANALYSIS_PROVIDER"))
	}

	analyzer := analyze.NewAnalyzer(textProvider, detector,
		analyze.WithMaxAttempts(cfg.GetIntWithDefault("ANALYSIS_MAX_ATTEMPTS", analyze.DefaultMaxAttempts)),
		analyze.WithBackoffBase(cfg.GetDurationWithDefault("ANALYSIS_BACKOFF_BASE", analyze.DefaultBackoffBase)))

	return pipeline.New(store, nil, transcriber, analyzer, detector,
		pipeline.WithMaxProviderCalls(int64(cfg.GetIntWithDefault("MAX_PROVIDER_CALLS", pipeline.DefaultMaxProviderCalls))),
		pipeline.WithMaxAudioBytes(int64(cfg.GetIntWithDefault("MAX_AUDIO_BYTES", 0))))
}
