// Package config loads the bot's key/value environment file,
// auto-appending any optional key the bundled template defines but
// the live file is missing, and parses the result into a typed
// Config using joho/godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// templateEntry describes one key the template file may define.
type templateEntry struct {
	Key      string
	Default  string
	Required bool
	Comment  string
}

// template is the fixed superset of recognized keys (spec.md §6).
// Keys absent here are left untouched in the live file.
var template = []templateEntry{
	{Key: "APP_ID", Required: true, Comment: "Chat-platform application identifier"},
	{Key: "BOT_TOKEN", Required: true, Comment: "Chat-platform bot token"},
	{Key: "PRIMARY_GUILD_ID", Required: true, Comment: "Primary guild snowflake"},
	{Key: "DATABASE_PATH", Required: true, Comment: "Path to the SQLite database file"},

	{Key: "STREAM_API_KEY", Default: "", Comment: "Livestream platform API key"},
	{Key: "YOUTUBE_API_KEY", Default: "", Comment: "Video platform API key"},
	{Key: "LLM_ENDPOINT", Default: "", Comment: "Language-model scoring endpoint"},
	{Key: "LLM_MODEL", Default: "", Comment: "Language-model name"},
	{Key: "HTTP_API_PORT", Default: "8080", Comment: "Dashboard HTTP API port"},
	{Key: "HTTP_API_SECRET", Default: "change-me", Comment: "Shared secret for X-API-Key"},
	{Key: "CORS_ORIGINS", Default: "", Comment: "Comma-separated allowed CORS origins"},
	{Key: "AI_MASTER_ENABLED", Default: "false", Comment: "Master toggle for AI features"},
	{Key: "AI_COMMAND_ENABLED", Default: "false", Comment: "AI-assisted command toggle"},
	{Key: "AI_MODERATION_ENABLED", Default: "false", Comment: "AI moderation toggle"},
	{Key: "AI_CONTENT_FILTER_ENABLED", Default: "false", Comment: "AI content-filter toggle"},
	{Key: "LOG_LEVEL", Default: "info", Comment: "verbose|debug|info|warn|error|critical|quiet"},
	{Key: "BACKUP_DIR", Default: "./backups", Comment: "Directory for database backup snapshots"},
	{Key: "MAX_BACKUPS", Default: "10", Comment: "Maximum retained backup snapshots"},
}

// Config is the parsed, typed environment configuration.
type Config struct {
	AppID          string
	BotToken       string
	PrimaryGuildID string
	DatabasePath   string

	StreamAPIKey  string
	YouTubeAPIKey string
	LLMEndpoint   string
	LLMModel      string

	HTTPAPIPort   int
	HTTPAPISecret string
	CORSOrigins   []string

	AIMasterEnabled           bool
	AICommandEnabled          bool
	AIModerationEnabled       bool
	AIContentFilterEnabled    bool

	LogLevel   string
	BackupDir  string
	MaxBackups int
}

// Load reads path, auto-appending any template keys missing from the
// live file (with a comment block marking them as auto-added), then
// parses the merged key/value set into a Config.
func Load(path string) (*Config, error) {
	if err := appendMissingKeys(path); err != nil {
		return nil, fmt.Errorf("config: auto-append missing keys: %w", err)
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var missingRequired []string
	for _, t := range template {
		if t.Required && strings.TrimSpace(values[t.Key]) == "" {
			missingRequired = append(missingRequired, t.Key)
		}
	}
	if len(missingRequired) > 0 {
		return nil, fmt.Errorf("config: missing required keys: %s", strings.Join(missingRequired, ", "))
	}

	cfg := &Config{
		AppID:          values["APP_ID"],
		BotToken:       values["BOT_TOKEN"],
		PrimaryGuildID: values["PRIMARY_GUILD_ID"],
		DatabasePath:   values["DATABASE_PATH"],
		StreamAPIKey:   values["STREAM_API_KEY"],
		YouTubeAPIKey:  values["YOUTUBE_API_KEY"],
		LLMEndpoint:    values["LLM_ENDPOINT"],
		LLMModel:       values["LLM_MODEL"],
		HTTPAPISecret:  values["HTTP_API_SECRET"],
		LogLevel:       strings.ToLower(strings.TrimSpace(values["LOG_LEVEL"])),
		BackupDir:      values["BACKUP_DIR"],
	}

	cfg.HTTPAPIPort, err = parseIntDefault(values["HTTP_API_PORT"], 8080)
	if err != nil {
		return nil, fmt.Errorf("config: HTTP_API_PORT: %w", err)
	}
	cfg.MaxBackups, err = parseIntDefault(values["MAX_BACKUPS"], 10)
	if err != nil {
		return nil, fmt.Errorf("config: MAX_BACKUPS: %w", err)
	}
	cfg.AIMasterEnabled = parseBool(values["AI_MASTER_ENABLED"])
	cfg.AICommandEnabled = parseBool(values["AI_COMMAND_ENABLED"])
	cfg.AIModerationEnabled = parseBool(values["AI_MODERATION_ENABLED"])
	cfg.AIContentFilterEnabled = parseBool(values["AI_CONTENT_FILTER_ENABLED"])

	if origins := strings.TrimSpace(values["CORS_ORIGINS"]); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg, nil
}

// appendMissingKeys appends any template key absent from the live
// file at path, under a single auto-added comment block stamped with
// the current time. Lines beginning with '#' and empty lines in the
// existing file are left untouched (and ignored when checking for
// presence, matching spec.md §6).
func appendMissingKeys(path string) error {
	existing := map[string]bool{}
	if raw, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(raw), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if idx := strings.Index(line, "="); idx > 0 {
				existing[strings.TrimSpace(line[:idx])] = true
			}
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	var missing []templateEntry
	for _, t := range template {
		if !existing[t.Key] {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n# --- auto-added %s ---\n", time.Now().UTC().Format(time.RFC3339)))
	for _, t := range missing {
		if t.Comment != "" {
			b.WriteString("# " + t.Comment + "\n")
		}
		b.WriteString(fmt.Sprintf("%s=%s\n", t.Key, t.Default))
	}
	_, err = f.WriteString(b.String())
	return err
}

func parseIntDefault(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func parseBool(raw string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return v
}
