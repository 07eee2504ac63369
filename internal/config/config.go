package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Environment   string
	HTTPAddr      string
	DataDir       string
	DBPath        string
	SettingsPath  string
	WatchSettings bool
	LogLevel      string
	UserAgent     string

	HeartbeatStaleSec int

	APIURL        string
	APITimeoutSec int

	LedgerRetentionDays int
	LedgerRetentionCron string

	TelegramToken string
	TelegramAPI   string
	TelegramPoll  int

	DiscordToken string
	DiscordAPI   string
	DiscordWSURL string
}

func FromEnv() Config {
	dataDir := stringOrDefault("CHAT_SKILLS_DATA_DIR", "/data")
	dbPath := stringOrDefault("CHAT_SKILLS_DB_PATH", filepath.Join(dataDir, "chat-skills", "ledger.sqlite"))

	return Config{
		Environment:         stringOrDefault("CHAT_SKILLS_ENV", "development"),
		HTTPAddr:            stringOrDefault("CHAT_SKILLS_HTTP_ADDR", ":8080"),
		DataDir:             dataDir,
		DBPath:              dbPath,
		SettingsPath:        stringOrDefault("CHAT_SKILLS_SETTINGS_PATH", filepath.Join(dataDir, "settings.yaml")),
		WatchSettings:       boolOrDefault("CHAT_SKILLS_WATCH_SETTINGS", true),
		LogLevel:            stringOrDefault("CHAT_SKILLS_LOG_LEVEL", "info"),
		UserAgent:           stringOrDefault("CHAT_SKILLS_USER_AGENT", "chat-skills/0.1"),
		HeartbeatStaleSec:   intOrDefault("CHAT_SKILLS_HEARTBEAT_STALE_SECONDS", 120),
		APIURL:              stringOrDefault("CHAT_SKILLS_API_URL", "http://127.0.0.1:8080"),
		APITimeoutSec:       intOrDefault("CHAT_SKILLS_API_TIMEOUT_SECONDS", 30),
		LedgerRetentionDays: intOrDefault("CHAT_SKILLS_LEDGER_RETENTION_DAYS", 90),
		LedgerRetentionCron: stringOrDefault("CHAT_SKILLS_LEDGER_RETENTION_CRON", "@daily"),
		TelegramToken:       strings.TrimSpace(os.Getenv("CHAT_SKILLS_TELEGRAM_TOKEN")),
		TelegramAPI:         stringOrDefault("CHAT_SKILLS_TELEGRAM_API_BASE", "https://api.telegram.org"),
		TelegramPoll:        intOrDefault("CHAT_SKILLS_TELEGRAM_POLL_SECONDS", 25),
		DiscordToken:        strings.TrimSpace(os.Getenv("CHAT_SKILLS_DISCORD_TOKEN")),
		DiscordAPI:          stringOrDefault("CHAT_SKILLS_DISCORD_API_BASE", "https://discord.com/api/v10"),
		DiscordWSURL:        stringOrDefault("CHAT_SKILLS_DISCORD_GATEWAY_URL", "wss://gateway.discord.gg/?v=10&encoding=json"),
	}
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
