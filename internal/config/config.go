package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything read from the environment. Both processes
// load the same file so they agree on paths and keys.
type Config struct {
	BotToken      string
	OpenAIKey     string // system fallback credential
	GoogleKey     string // system fallback credential
	EncryptionKey string // required, 32-byte AES key (hex or raw)
	AdminIDs      []int64

	// Helper session
	APIID           int
	APIHash         string
	MainBotUsername string
	SessionFile     string

	DatabasePath string
	TempDir      string
	Timezone     string // default IANA zone for new users
}

// Load reads .env (if present) and the process environment. It fails
// fast on missing required values so neither process starts half
// configured.
func Load() (*Config, error) {
	// Ignore the error: a missing .env just means plain env vars.
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:        os.Getenv("BOT_TOKEN"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		GoogleKey:       os.Getenv("GOOGLE_API_KEY"),
		EncryptionKey:   os.Getenv("ENCRYPTION_KEY"),
		APIHash:         os.Getenv("API_HASH"),
		MainBotUsername: strings.TrimPrefix(os.Getenv("MAIN_BOT_USERNAME"), "@"),
		SessionFile:     os.Getenv("SESSION_FILE"),
		DatabasePath:    os.Getenv("DATABASE_PATH"),
		TempDir:         os.Getenv("TEMP_DIR"),
		Timezone:        os.Getenv("BOT_TIMEZONE"),
	}

	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY environment variable is not set")
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "data/assistant.db"
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = "data/helper.session"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/Kyiv"
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid BOT_TIMEZONE %q: %w", cfg.Timezone, err)
	}

	if idStr := os.Getenv("API_ID"); idStr != "" {
		id, err := strconv.Atoi(strings.TrimSpace(idStr))
		if err != nil {
			return nil, fmt.Errorf("invalid API_ID: %w", err)
		}
		cfg.APIID = id
	}

	for _, idStr := range strings.Split(os.Getenv("ADMIN_IDS"), ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", idStr, err)
		}
		cfg.AdminIDs = append(cfg.AdminIDs, id)
	}

	return cfg, nil
}

// IsAdmin reports whether the given user id is in ADMIN_IDS.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
