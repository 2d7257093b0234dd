package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Production is the APP_ENV value in which the bot is allowed to message
// any chat. In every other environment delivery is restricted to TestChatID.
const Production = "production"

// Config holds the application configuration.
type Config struct {
	AppEnv          string
	Debug           bool
	Version         string
	BotToken        string
	SentryDSN       string
	MongoDBURI      string
	MongoDBDatabase string

	// AdminChatID is the only chat allowed to run /broadcast.
	AdminChatID int64
	// TestChatID is the only chat the bot messages outside production.
	TestChatID int64

	// Reward texts. WinMessage opens every reward, CookieMessage is appended
	// when the cookie roll succeeds.
	WinMessage    string
	CookieMessage string

	// Haiku generation parameters.
	GeminiAPIKey     string
	GeminiModel      string
	HaikuPrompt      string
	HaikuTemperature float64
	HaikuMaxTokens   int
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by Docker).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	debug, _ := strconv.ParseBool(getEnv("DEBUG", "false"))

	adminChatID, err := parseChatID("ADMIN_CHAT_ID")
	if err != nil {
		return nil, err
	}
	testChatID, err := parseChatID("TEST_CHAT_ID")
	if err != nil {
		return nil, err
	}

	temperature, err := strconv.ParseFloat(getEnv("HAIKU_TEMPERATURE", "1.0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid HAIKU_TEMPERATURE: %w", err)
	}
	maxTokens, err := strconv.Atoi(getEnv("HAIKU_MAX_TOKENS", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid HAIKU_MAX_TOKENS: %w", err)
	}

	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Debug:           debug,
		Version:         getEnv("VERSION", "dev"),
		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		MongoDBURI:      getEnv("MONGODB_URI", ""),
		MongoDBDatabase: getEnv("MONGODB_DATABASE", "coffeechest"),
		AdminChatID:     adminChatID,
		TestChatID:      testChatID,
		WinMessage:      getEnv("WIN_MESSAGE", "Поздравляю! Тебе выпало кофечко сегодня! 🎉"),
		CookieMessage:   getEnv("COOKIE_MESSAGE", "А ещё тебе выпала печенька! 🍪"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL_NAME", "gemini-1.5-flash"),
		HaikuPrompt: getEnv("HAIKU_PROMPT",
			"Напиши хокку про утренний кофе. Верни только текст хокку, без пояснений."),
		HaikuTemperature: temperature,
		HaikuMaxTokens:   maxTokens,
	}

	// Basic validation for essential variables
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.MongoDBURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	if cfg.AdminChatID == 0 {
		log.Println("Warning: ADMIN_CHAT_ID is not set, /broadcast is disabled")
	}
	if cfg.AppEnv != Production && cfg.TestChatID == 0 {
		log.Println("Warning: TEST_CHAT_ID is not set, all outbound messages will be suppressed")
	}
	if cfg.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}
	if cfg.GeminiAPIKey == "" {
		log.Println("Warning: GEMINI_API_KEY is not set, haiku generation will fail and be omitted")
	}

	return cfg, nil
}

// parseChatID reads an optional int64 chat id from the environment.
func parseChatID(key string) (int64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
