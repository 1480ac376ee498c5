package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"opentracker/internal/logger"
)

// FixedPollingSeconds is the activity sampling interval. It is not
// user tunable: every stored sample carries exactly this duration.
const FixedPollingSeconds = 300

const DefaultReportTime = "23:30"

type Config struct {
	Collector CollectorConfig `mapstructure:"collector"`
	Report    ReportConfig    `mapstructure:"report"`
	Storage   StorageConfig   `mapstructure:"storage"`
	API       APIConfig       `mapstructure:"api"`
	AI        AIConfig        `mapstructure:"ai"`
}

type CollectorConfig struct {
	PollingSeconds int      `mapstructure:"polling_seconds"`
	ChromeProfiles []string `mapstructure:"chrome_profiles"`
}

type ReportConfig struct {
	Time   string `mapstructure:"time"`   // Daily report trigger, "HH:MM" local time
	Dir    string `mapstructure:"dir"`    // Directory for markdown/json report artifacts
	Notify bool   `mapstructure:"notify"` // Desktop notification after report generation
}

type StorageConfig struct {
	DBPath         string    `mapstructure:"db_path"`
	RetentionDays  int       `mapstructure:"retention_days"`
	CategoriesPath string    `mapstructure:"categories_path"`
	CleanupCron    string    `mapstructure:"cleanup_cron"` // Cron expression for retention cleanup
	LogPath        string    `mapstructure:"log_path"`
	Log            LogConfig `mapstructure:"log"`
}

type LogConfig struct {
	Level        string `mapstructure:"level"`
	RotationTime string `mapstructure:"rotation_time"`
	MaxSize      int    `mapstructure:"max_size"`
	MaxBackups   int    `mapstructure:"max_backups"`
	MaxAge       int    `mapstructure:"max_age"`
	Compress     bool   `mapstructure:"compress"`
}

type APIConfig struct {
	Port int `mapstructure:"port"`
}

type AIConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the AI request timeout, floored at 5 seconds.
func (c *AIConfig) Timeout() time.Duration {
	seconds := c.TimeoutSeconds
	if seconds < 5 {
		seconds = 5
	}
	return time.Duration(seconds) * time.Second
}

// ResolveAPIKey returns the configured AI credential, preferring the
// OPENTRACKER_AI_API_KEY environment variable over the config file.
func (c *AIConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(os.Getenv("OPENTRACKER_AI_API_KEY")); key != "" {
		return key
	}
	return strings.TrimSpace(c.APIKey)
}

var globalConfig *Config

func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureSources(v, configPath)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The sampling interval is the unit every duration calculation is
	// built on; reject attempts to change it rather than skewing totals.
	cfg.Collector.PollingSeconds = FixedPollingSeconds

	if len(cfg.Collector.ChromeProfiles) == 0 {
		cfg.Collector.ChromeProfiles = []string{"Default"}
	}

	if err := normalizePaths(&cfg); err != nil {
		return nil, fmt.Errorf("failed to normalize paths: %w", err)
	}

	if err := initLogger(&cfg.Storage); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

func configureSources(v *viper.Viper, configPath string) {
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.SetConfigName("config")

	execPath, err := os.Executable()
	if err == nil {
		execDir := filepath.Dir(execPath)
		v.AddConfigPath(filepath.Join(execDir, "config"))
		v.AddConfigPath(execDir)
	}

	// Also check current working directory (for development)
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".opentracker"))
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("collector.polling_seconds", FixedPollingSeconds)
	v.SetDefault("collector.chrome_profiles", []string{"Default"})

	v.SetDefault("report.time", DefaultReportTime)
	v.SetDefault("report.dir", "./data/reports")
	v.SetDefault("report.notify", true)

	v.SetDefault("storage.db_path", "./data/db/activity.db")
	v.SetDefault("storage.retention_days", 90)
	v.SetDefault("storage.categories_path", "./config/categories.json")
	v.SetDefault("storage.cleanup_cron", "")
	v.SetDefault("storage.log_path", "")
	v.SetDefault("storage.log.level", "info")
	v.SetDefault("storage.log.rotation_time", "24h")
	v.SetDefault("storage.log.max_size", 100)
	v.SetDefault("storage.log.max_backups", 3)
	v.SetDefault("storage.log.max_age", 28)
	v.SetDefault("storage.log.compress", true)

	v.SetDefault("api.port", 7890)

	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout_seconds", 20)
}

// CurrentReportTime re-reads the report trigger time from the config
// file. The daily scheduler calls this on every poll so a mid-day edit
// (CLI `config set` or the API schedule endpoint) takes effect without
// a restart.
func CurrentReportTime(configPath string) (string, error) {
	v := viper.New()
	configureSources(v, configPath)
	v.SetDefault("report.time", DefaultReportTime)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return "", fmt.Errorf("failed to read config file: %w", err)
		}
	}

	reportTime := strings.TrimSpace(v.GetString("report.time"))
	if _, _, err := ParseHHMM(reportTime); err != nil {
		return "", err
	}
	return reportTime, nil
}

// SetValue validates and persists a single config key. Only a fixed
// key set is writable; everything else is rejected.
func SetValue(configPath, key, value string) error {
	normalized := normalizeKey(key)

	switch normalized {
	case "collector.polling_seconds":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed != FixedPollingSeconds {
			return fmt.Errorf("collector.polling_seconds is fixed to %d seconds", FixedPollingSeconds)
		}
	case "report.time":
		if _, _, err := ParseHHMM(value); err != nil {
			return err
		}
	case "report.notify", "ai.enabled":
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%s must be true/false", normalized)
		}
	case "api.port":
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("api.port must be a port number")
		}
	case "storage.retention_days":
		days, err := strconv.Atoi(value)
		if err != nil || days < 1 {
			return fmt.Errorf("storage.retention_days must be a positive number")
		}
	case "ai.timeout_seconds":
		seconds, err := strconv.Atoi(value)
		if err != nil || seconds < 5 {
			return fmt.Errorf("ai.timeout_seconds must be a number >= 5")
		}
	case "report.dir", "collector.chrome_profiles", "ai.api_key", "ai.base_url", "ai.model", "storage.cleanup_cron":
		// free-form string keys
	default:
		return fmt.Errorf("unsupported config key: %s", key)
	}

	v := viper.New()
	configureSources(v, configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if normalized == "collector.chrome_profiles" {
		profiles := splitProfiles(value)
		if len(profiles) == 0 {
			return fmt.Errorf("collector.chrome_profiles requires at least one profile")
		}
		v.Set(normalized, profiles)
	} else {
		v.Set(normalized, strings.TrimSpace(value))
	}

	target := v.ConfigFileUsed()
	if target == "" {
		target = configPath
	}
	if target == "" {
		target = defaultConfigFile()
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := v.WriteConfigAs(target); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetValue reads a single config key from the file; credentials are masked.
func GetValue(configPath, key string) (string, error) {
	normalized := normalizeKey(key)

	v := viper.New()
	configureSources(v, configPath)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return "", fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if !v.IsSet(normalized) {
		return "", fmt.Errorf("unsupported config key: %s", key)
	}

	if normalized == "ai.api_key" {
		if strings.TrimSpace(v.GetString(normalized)) == "" {
			return "not_set", nil
		}
		return "***set***", nil
	}
	if normalized == "collector.chrome_profiles" {
		return strings.Join(v.GetStringSlice(normalized), ","), nil
	}
	return v.GetString(normalized), nil
}

func normalizeKey(key string) string {
	switch key {
	case "report_time":
		return "report.time"
	case "report_dir":
		return "report.dir"
	case "notify_on_report":
		return "report.notify"
	case "chrome_profiles":
		return "collector.chrome_profiles"
	case "polling_seconds":
		return "collector.polling_seconds"
	case "api_port":
		return "api.port"
	case "retention_days":
		return "storage.retention_days"
	case "ai_enabled":
		return "ai.enabled"
	case "ai_api_key":
		return "ai.api_key"
	case "ai_api_base_url":
		return "ai.base_url"
	case "ai_model":
		return "ai.model"
	case "ai_timeout_seconds":
		return "ai.timeout_seconds"
	}
	return key
}

func splitProfiles(value string) []string {
	var profiles []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			profiles = append(profiles, part)
		}
	}
	return profiles
}

// ParseHHMM parses a 24-hour "HH:MM" string.
func ParseHHMM(value string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format: %s (example: 23:30, 24-hour format)", value)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in time: %s", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in time: %s", value)
	}
	return hour, minute, nil
}

func (c *StorageConfig) EnsureDBPath() error {
	dir := filepath.Dir(c.DBPath)
	if dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

func (c *ReportConfig) EnsureDir() error {
	if c.Dir != "" {
		return os.MkdirAll(c.Dir, 0755)
	}
	return nil
}

// EnsureCategoriesFile writes the bundled default category rules when
// no rules file exists yet, so a fresh install categorizes sensibly.
func (c *StorageConfig) EnsureCategoriesFile() error {
	if c.CategoriesPath == "" {
		return nil
	}
	if _, err := os.Stat(c.CategoriesPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat categories file: %w", err)
	}

	dir := filepath.Dir(c.CategoriesPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create categories directory: %w", err)
		}
	}
	if err := os.WriteFile(c.CategoriesPath, []byte(defaultCategoriesJSON), 0600); err != nil {
		return fmt.Errorf("failed to write default categories file: %w", err)
	}
	return nil
}

func normalizePaths(cfg *Config) error {
	baseDir, err := getBaseDirectory()
	if err != nil {
		baseDir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get base directory: %w", err)
		}
	}

	if cfg.Report.Dir != "" && !filepath.IsAbs(cfg.Report.Dir) {
		cfg.Report.Dir = filepath.Join(baseDir, cfg.Report.Dir)
	}

	if cfg.Storage.DBPath != "" && !filepath.IsAbs(cfg.Storage.DBPath) {
		cfg.Storage.DBPath = filepath.Join(baseDir, cfg.Storage.DBPath)
	}

	if cfg.Storage.CategoriesPath != "" && !filepath.IsAbs(cfg.Storage.CategoriesPath) {
		cfg.Storage.CategoriesPath = filepath.Join(baseDir, cfg.Storage.CategoriesPath)
	}

	if cfg.Storage.LogPath == "" {
		cfg.Storage.LogPath = filepath.Join(baseDir, "opentracker.log")
	} else if !filepath.IsAbs(cfg.Storage.LogPath) {
		cfg.Storage.LogPath = filepath.Join(baseDir, cfg.Storage.LogPath)
	}

	// If LogPath is (or looks like) a directory, append default filename
	if info, err := os.Stat(cfg.Storage.LogPath); err == nil && info.IsDir() {
		cfg.Storage.LogPath = filepath.Join(cfg.Storage.LogPath, "opentracker.log")
	} else if os.IsNotExist(err) && filepath.Ext(cfg.Storage.LogPath) == "" {
		cfg.Storage.LogPath = filepath.Join(cfg.Storage.LogPath, "opentracker.log")
	}

	if cfg.Storage.Log.Level == "" {
		cfg.Storage.Log.Level = "info"
	}

	return nil
}

// getBaseDirectory returns the base directory for resolving relative
// paths: the executable directory, with a bin/ parent walk-up so an
// installed layout resolves against the project root.
func getBaseDirectory() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return os.Getwd()
	}

	realPath, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		realPath = execPath
	}

	execDir := filepath.Dir(realPath)
	if filepath.Base(execDir) == "bin" {
		currentDir := execDir
		for {
			parentDir := filepath.Dir(currentDir)
			if parentDir == currentDir {
				break
			}
			if info, err := os.Stat(filepath.Join(currentDir, "config")); err == nil && info.IsDir() {
				return currentDir, nil
			}
			currentDir = parentDir
		}
	}

	return execDir, nil
}

func defaultConfigFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config/config.yaml"
	}
	return filepath.Join(homeDir, ".opentracker", "config.yaml")
}

func initLogger(storage *StorageConfig) error {
	return logger.Init(logger.LogConfig{
		Level:        storage.Log.Level,
		FilePath:     storage.LogPath,
		RotationTime: storage.Log.RotationTime,
		MaxSize:      storage.Log.MaxSize,
		MaxBackups:   storage.Log.MaxBackups,
		MaxAge:       storage.Log.MaxAge,
		Compress:     storage.Log.Compress,
	})
}
