package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chatlog-dashboard/internal/models"
	"github.com/joho/godotenv"
)

// DefaultChatTable is the table the chat workflow writes its history to
const DefaultChatTable = "n8n_chat_historias_04022026"

// Load loads configuration from environment variables
// It first attempts to load from .env file, then reads environment variables
func Load() (models.AppConfig, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	cfg, err := fromEnv()
	if err != nil {
		return models.AppConfig{}, fmt.Errorf("config validation failed: %w", err)
	}

	if err := validate(cfg); err != nil {
		return models.AppConfig{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// fromEnv builds the configuration from the current environment
func fromEnv() (models.AppConfig, error) {
	chatIDs, err := getEnvInt64List("TELEGRAM_ALLOWED_CHAT_IDS")
	if err != nil {
		return models.AppConfig{}, err
	}

	routes := models.Routes{
		Home:           "/index.html",
		Login:          "/login.html",
		Register:       "/register.html",
		Dashboard:      "/dashboard.html",
		ResetPassword:  "/reset-password.html",
		UpdatePassword: "/update-password.html",
		Confirm:        "/confirm.html",
	}

	authProject := models.SupabaseProject{
		URL: strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		Key: getEnv("SUPABASE_ANON_KEY", ""),
	}

	cfg := models.AppConfig{
		// App settings
		AppName:     getEnv("APP_NAME", "Family6 SaaS"),
		AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:8888"), "/"),
		Timezone:    getEnv("TIMEZONE", "Europe/Madrid"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "production"),

		// Routing
		Routes: routes,
		ProtectedRoutes: []string{
			routes.Dashboard,
			"/conversaciones.html",
			"/analiticas.html",
			"/configuracion.html",
		},
		AuthRoutes: []string{routes.Login, routes.Register},

		// Supabase settings
		Auth: authProject,
		Chat: models.SupabaseProject{
			URL: strings.TrimRight(getEnv("CHAT_SUPABASE_URL", authProject.URL), "/"),
			Key: getEnv("CHAT_SUPABASE_ANON_KEY", authProject.Key),
		},
		ChatTable:       getEnv("CHAT_TABLE", DefaultChatTable),
		SupabaseTimeout: getEnvInt("SUPABASE_TIMEOUT", 10),
		SessionFile:     getEnv("SESSION_FILE", defaultSessionFile()),

		// Telegram settings
		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		AllowedChatIDs: chatIDs,
		ReportCron:     getEnv("REPORT_CRON", "0 9 * * *"),
		ReportUserID:   getEnv("REPORT_USER_ID", ""),

		// Gemini settings
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTimeout:    getEnvInt("GEMINI_TIMEOUT", 30),
		DigestDailyLimit: getEnvInt("DIGEST_DAILY_LIMIT", 10),
	}

	return cfg, nil
}

// validate checks if all required configuration values are set
func validate(cfg models.AppConfig) error {
	if cfg.Auth.URL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.Auth.Key == "" {
		return fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	if cfg.ChatTable == "" {
		return fmt.Errorf("CHAT_TABLE must not be empty")
	}

	// Validate positive values
	if cfg.SupabaseTimeout <= 0 {
		return fmt.Errorf("SUPABASE_TIMEOUT must be positive, got %d", cfg.SupabaseTimeout)
	}
	if cfg.GeminiTimeout <= 0 {
		return fmt.Errorf("GEMINI_TIMEOUT must be positive, got %d", cfg.GeminiTimeout)
	}
	if cfg.DigestDailyLimit <= 0 {
		return fmt.Errorf("DIGEST_DAILY_LIMIT must be positive, got %d", cfg.DigestDailyLimit)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error; got %s", cfg.LogLevel)
	}

	return nil
}

// ValidateBot checks the settings only the Telegram surface needs
func ValidateBot(cfg models.AppConfig) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if len(cfg.AllowedChatIDs) == 0 {
		return fmt.Errorf("TELEGRAM_ALLOWED_CHAT_IDS is required")
	}
	return nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvInt64List parses a comma-separated list of int64 values
func getEnvInt64List(key string) ([]int64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil, nil
	}

	parts := strings.Split(valueStr, ",")
	values := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s contains invalid id %q: %w", key, part, err)
		}
		values = append(values, value)
	}

	return values, nil
}

// defaultSessionFile returns the session path under the user's home directory
func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".chatlog", "session.json")
	}
	return filepath.Join(home, ".chatlog", "session.json")
}
