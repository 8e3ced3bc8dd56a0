package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the configuration of the application
type Config struct {
	// KV engine: sqlite, postgres, redis or memory
	StoreEngine string
	// sqlite path, postgres DSN or redis address
	StoreDSN string
	// Key prefix of learner records
	RecordPrefix string
	// Login id that opens the admin dashboard instead of a learner session
	AdminID string

	CurriculumFile string
	WeeksFile      string

	HTTPAddr    string
	JWTSecret   string
	CORSOrigins []string

	TelegramToken string

	GeminiAPIKey       string
	GeminiBaseURL      string
	GeminiGradingModel string
	GeminiTTSModel     string
	GeminiVoice        string
	GeminiTimeout      time.Duration

	// Points for finishing a day or a non-final review
	CompletionBonus int
	// Points per correct answer in the final exam
	FinalExamPointsPerAnswer int
	// Length of the completion celebration before the next day unlocks
	CelebrationWindow time.Duration
	// Pause between speech preload requests
	PreloadDelay time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		StoreEngine:              "sqlite",
		StoreDSN:                 "data/vocastar.db",
		RecordPrefix:             "vocastar_",
		AdminID:                  "admin7",
		CurriculumFile:           "data/curriculum.csv",
		WeeksFile:                "data/weeks.csv",
		HTTPAddr:                 ":8080",
		CORSOrigins:              []string{"http://localhost:3000"},
		GeminiBaseURL:            "https://generativelanguage.googleapis.com",
		GeminiGradingModel:       "gemini-3-flash-preview",
		GeminiTTSModel:           "gemini-2.5-flash-preview-tts",
		GeminiVoice:              "Kore",
		GeminiTimeout:            20 * time.Second,
		CompletionBonus:          10,
		FinalExamPointsPerAnswer: 10,
		CelebrationWindow:        5 * time.Second,
		PreloadDelay:             4 * time.Second,
	}
}

// Load reads .env (when present) and the process environment on top of the defaults
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not loaded: %v", err)
	}

	cfg := DefaultConfig()
	cfg.StoreEngine = strings.ToLower(envOrDefault("VOCASTAR_STORE", cfg.StoreEngine))
	cfg.StoreDSN = envOrDefault("VOCASTAR_DSN", cfg.StoreDSN)
	cfg.CurriculumFile = envOrDefault("VOCASTAR_CURRICULUM", cfg.CurriculumFile)
	cfg.WeeksFile = envOrDefault("VOCASTAR_WEEKS", cfg.WeeksFile)
	if addr, ok := os.LookupEnv("VOCASTAR_ADDR"); ok {
		cfg.HTTPAddr = strings.TrimSpace(addr)
	}
	cfg.JWTSecret = os.Getenv("VOCASTAR_JWT_SECRET")
	if origins := os.Getenv("VOCASTAR_CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))

	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.GeminiBaseURL = envOrDefault("GEMINI_BASE_URL", cfg.GeminiBaseURL)
	cfg.GeminiGradingModel = envOrDefault("GEMINI_GRADING_MODEL", cfg.GeminiGradingModel)
	cfg.GeminiTTSModel = envOrDefault("GEMINI_TTS_MODEL", cfg.GeminiTTSModel)
	cfg.GeminiVoice = envOrDefault("GEMINI_TTS_VOICE", cfg.GeminiVoice)
	cfg.GeminiTimeout = envSeconds("GEMINI_TIMEOUT_SECONDS", cfg.GeminiTimeout)

	cfg.PreloadDelay = envSeconds("VOCASTAR_PRELOAD_DELAY_SECONDS", cfg.PreloadDelay)
	cfg.CelebrationWindow = envSeconds("VOCASTAR_CELEBRATION_SECONDS", cfg.CelebrationWindow)

	return cfg
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		log.Printf("Warning: invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return time.Duration(n) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
