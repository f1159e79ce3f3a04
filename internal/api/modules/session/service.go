package session

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/YoungApple/voice-recorder/internal/analyze"
	"github.com/YoungApple/voice-recorder/internal/language"
	"github.com/YoungApple/voice-recorder/internal/pipeline"
	"github.com/YoungApple/voice-recorder/internal/recorder"
	"github.com/YoungApple/voice-recorder/internal/storage"
	"github.com/YoungApple/voice-recorder/internal/transcribe"
	"github.com/YoungApple/voice-recorder/pkg/utils"
)

var coordinator *pipeline.Coordinator

// Init builds the full processing pipeline from configuration: storage,
// audio capture, the configured transcription and analysis providers, and
// the coordinator that sequences them
func Init(cfg *utils.Config) {
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
		log.Fatalf("[SESSION]: Failed to initialize session store: %v", err)
	}

	sampleRate := cfg.GetIntWithDefault("AUDIO_SAMPLE_RATE", 16000)
	channels := cfg.GetIntWithDefault("AUDIO_CHANNELS", 1)
	rec := recorder.New(store,
		recorder.NewExecCapturer(sampleRate, channels),
		cfg.GetWithDefault("AUDIO_STORAGE_DIR", "./recordings"),
		sampleRate, channels)

	detector := language.NewDetector(
		cfg.GetFloat64WithDefault("CHINESE_THRESHOLD", language.DefaultChineseThreshold))

	analyzer := analyze.NewAnalyzer(textProvider(cfg), detector,
		analyze.WithMaxAttempts(cfg.GetIntWithDefault("ANALYSIS_MAX_ATTEMPTS", analyze.DefaultMaxAttempts)),
		analyze.WithBackoffBase(cfg.GetDurationWithDefault("ANALYSIS_BACKOFF_BASE", analyze.DefaultBackoffBase)),
		analyze.WithPromptTemplates(promptTemplates(cfg)))

	InitWithCoordinator(pipeline.New(store, rec, transcriber(cfg), analyzer, detector,
		pipeline.WithMaxProviderCalls(int64(cfg.GetIntWithDefault("MAX_PROVIDER_CALLS", pipeline.DefaultMaxProviderCalls))),
		pipeline.WithMaxAudioBytes(int64(cfg.GetIntWithDefault("MAX_AUDIO_BYTES", 0)))))
}

// InitWithCoordinator installs an already-built pipeline
func InitWithCoordinator(coord *pipeline.Coordinator) {
	coordinator = coord
}

// Return the coordinator instance
func GetCoordinator() *pipeline.Coordinator {
	if coordinator == nil {
		log.Fatal("[SESSION]: Coordinator is not initialized")
	}
	return coordinator
}

// transcriber selects the transcription backend from configuration
func transcriber(cfg *utils.Config) transcribe.Provider {
	formats := transcribe.DefaultFormats
	if raw := cfg.Get("AUDIO_FORMATS"); raw != "" {
		formats = strings.Split(raw, ",")
	}

	switch cfg.GetWithDefault("TRANSCRIBE_PROVIDER", "whisper-cpp") {
	case "openai":
		return transcribe.NewOpenAIProvider(cfg.Get("OPENAI_API_KEY"), formats)
	case "whisper-cpp":
		return transcribe.NewWhisperCppProvider(
			cfg.GetWithDefault("WHISPER_CPP_PATH", "whisper-cli"),
			cfg.Get("WHISPER_MODEL_PATH"),
			formats)
	default:
		log.Fatalf("[SESSION]: Unknown transcription provider %q", cfg.Get("TRANSCRIBE_PROVIDER"))
		return nil
	}
}

// promptTemplates loads prompt template overrides from files when
// configured, keeping the built-in templates otherwise
func promptTemplates(cfg *utils.Config) analyze.Templates {
	templates := analyze.Templates{}
	if path := cfg.Get("ENGLISH_PROMPT_FILE"); path != "" {
		templates.English = utils.LoadPromptWithFallback(path, "")
	}
	if path := cfg.Get("CHINESE_PROMPT_FILE"); path != "" {
		templates.Chinese = utils.LoadPromptWithFallback(path, "")
	}
	return templates
}

// textProvider selects the analysis backend from configuration
func textProvider(cfg *utils.Config) analyze.TextProvider {
	switch cfg.GetWithDefault("ANALYSIS_PROVIDER", "ollama") {
	case "openai":
		return analyze.NewOpenAIProvider(cfg.Get("OPENAI_API_KEY"), cfg.Get("OPENAI_ANALYSIS_MODEL"))
	case "ollama":
		return analyze.NewOllamaProvider(
			cfg.GetWithDefault("OLLAMA_ENDPOINT", "http://localhost:11434"),
			cfg.GetWithDefault("OLLAMA_MODEL", "qwen3:8b"),
			cfg.GetDurationWithDefault("OLLAMA_TIMEOUT", 2*time.Minute))
	default:
		log.Fatalf("[SESSION]: Unknown analysis provider %q", cfg.Get("ANALYSIS_PROVIDER"))
		return nil
	}
}
