package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/semmidev/keepsake/internal/infrastructure/scheduler"
	"github.com/semmidev/keepsake/internal/usecase"
)

const envPrefix = "KEEPSAKE"

type Config struct {
	App       AppConfig        `mapstructure:"app"`
	HTTP      HTTPConfig       `mapstructure:"http"`
	Backup    BackupConfig     `mapstructure:"backup"`
	Metadata  MetadataConfig   `mapstructure:"metadata"`
	Schedules []ScheduleConfig `mapstructure:"schedules"`
	Notify    NotifyConfig     `mapstructure:"notify"`
	Sources   SourcesConfig    `mapstructure:"sources"`
}

type AppConfig struct {
	Name         string `mapstructure:"name"`
	LogLevel     string `mapstructure:"log_level"`
	LogFile      string `mapstructure:"log_file"`
	ErrorLogFile string `mapstructure:"error_log_file"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type BackupConfig struct {
	Dir             string `mapstructure:"dir"`
	RestoreDir      string `mapstructure:"restore_dir"`
	Compression     string `mapstructure:"compression"`
	Level           int    `mapstructure:"level"`
	Indent          string `mapstructure:"indent"`
	RetentionDays   int    `mapstructure:"retention_days"`
	KeepLast        int    `mapstructure:"keep_last"`
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
}

type MetadataConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

type ScheduleConfig struct {
	Name   string       `mapstructure:"name"`
	Cron   string       `mapstructure:"cron"`
	Source SourceConfig `mapstructure:"source"`
}

// SourceConfig describes where a scheduled backup takes its payload from.
// Only the fields of the selected Type are read.
type SourceConfig struct {
	Type string `mapstructure:"type" json:"type"`

	// file
	Path string `mapstructure:"path" json:"path,omitempty"`

	// http
	URL string `mapstructure:"url" json:"url,omitempty"`

	// s3
	Bucket string `mapstructure:"bucket" json:"bucket,omitempty"`
	Key    string `mapstructure:"key" json:"key,omitempty"`
	Region string `mapstructure:"region" json:"region,omitempty"`

	// gdrive
	FileID          string `mapstructure:"file_id" json:"file_id,omitempty"`
	CredentialsFile string `mapstructure:"credentials_file" json:"credentials_file,omitempty"`

	// inline; a JSON document kept as text so key case survives the
	// case-insensitive config loader
	InlineJSON string `mapstructure:"inline_json" json:"inline_json,omitempty"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type SourcesConfig struct {
	S3     S3Config     `mapstructure:"s3"`
	GDrive GDriveConfig `mapstructure:"gdrive"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type GDriveConfig struct {
	CredentialsFile  string `mapstructure:"credentials_file"`
	ClientSecretFile string `mapstructure:"client_secret_file"`
	RefreshToken     string `mapstructure:"refresh_token"`
}

const (
	SourceInline = "inline"
	SourceFile   = "file"
	SourceHTTP   = "http"
	SourceS3     = "s3"
	SourceGDrive = "gdrive"
)

var compressions = map[string]bool{"gzip": true, "zstd": true, "lz4": true}

// legacyEnv maps the bare variable names older deployments used.
var legacyEnv = map[string][]string{
	"backup.dir":         {"BACKUP_DIR", "BACKUP_STORAGE_PATH"},
	"backup.restore_dir": {"RESTORE_DIR"},
	"app.log_level":      {"LOG_LEVEL"},
	"http.addr":          {"PORT"},
}

// Load reads path when given, then applies KEEPSAKE_* overrides such as
// KEEPSAKE_BACKUP_DIR. A missing path means defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		// BindEnv with explicit names replaces the prefixed one, so keep both.
		args := append([]string{key, envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.HTTP.Addr = normalizeAddr(cfg.HTTP.Addr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "keepsake")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "")
	v.SetDefault("app.error_log_file", "")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":3000")

	v.SetDefault("backup.dir", "./backups")
	v.SetDefault("backup.restore_dir", "./restored")
	v.SetDefault("backup.compression", "gzip")
	v.SetDefault("backup.level", 6)
	v.SetDefault("backup.indent", "")
	v.SetDefault("backup.retention_days", 7)
	v.SetDefault("backup.keep_last", 0)
	v.SetDefault("backup.cleanup_schedule", "0 3 * * *")

	v.SetDefault("metadata.path", "./data/metadata")
	v.SetDefault("metadata.in_memory", false)

	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")

	v.SetDefault("sources.s3.region", "")
	v.SetDefault("sources.s3.access_key", "")
	v.SetDefault("sources.s3.secret_key", "")
	v.SetDefault("sources.gdrive.credentials_file", "")
	v.SetDefault("sources.gdrive.client_secret_file", "")
	v.SetDefault("sources.gdrive.refresh_token", "")
}

// normalizeAddr accepts a bare port, as PORT=3000 does.
func normalizeAddr(addr string) string {
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

func (c *Config) Validate() error {
	if c.Backup.Dir == "" {
		return fmt.Errorf("backup.dir is required")
	}
	if c.Backup.RestoreDir == "" {
		return fmt.Errorf("backup.restore_dir is required")
	}
	if !compressions[strings.ToLower(c.Backup.Compression)] {
		return fmt.Errorf("backup.compression: unsupported algorithm %q", c.Backup.Compression)
	}
	if c.Backup.RetentionDays < 0 || c.Backup.KeepLast < 0 {
		return fmt.Errorf("backup.retention_days and backup.keep_last must not be negative")
	}
	if c.Backup.CleanupSchedule != "" {
		if err := scheduler.ValidateSpec(c.Backup.CleanupSchedule); err != nil {
			return fmt.Errorf("backup.cleanup_schedule: %w", err)
		}
	}
	if !c.Metadata.InMemory && c.Metadata.Path == "" {
		return fmt.Errorf("metadata.path is required unless metadata.in_memory is set")
	}

	for i, s := range c.Schedules {
		if err := s.validate(); err != nil {
			return fmt.Errorf("schedules[%d]: %w", i, err)
		}
	}

	if t := c.Notify.Telegram; t.Enabled && (t.BotToken == "" || t.ChatID == "") {
		return fmt.Errorf("notify.telegram: bot_token and chat_id are required when enabled")
	}

	return nil
}

func (s ScheduleConfig) validate() error {
	if s.Cron == "" {
		return errors.New("cron is required")
	}
	if err := scheduler.ValidateSpec(s.Cron); err != nil {
		return err
	}

	src := s.Source
	switch src.Type {
	case SourceInline:
		if strings.TrimSpace(src.InlineJSON) == "" {
			return errors.New("source.inline_json is required for inline sources")
		}
		var v any
		if err := usecase.DecodeJSON(strings.NewReader(src.InlineJSON), &v); err != nil {
			return fmt.Errorf("source.inline_json is not valid JSON: %w", err)
		}
	case SourceFile:
		if src.Path == "" {
			return errors.New("source.path is required for file sources")
		}
	case SourceHTTP:
		if src.URL == "" {
			return errors.New("source.url is required for http sources")
		}
	case SourceS3:
		if src.Bucket == "" || src.Key == "" {
			return errors.New("source.bucket and source.key are required for s3 sources")
		}
	case SourceGDrive:
		if src.FileID == "" {
			return errors.New("source.file_id is required for gdrive sources")
		}
	default:
		return fmt.Errorf("unknown source type %q", src.Type)
	}
	return nil
}
