/*
Package config manages TOML config for OrdSøk services.

The file lives in the user config dir (~/.config/ordsok/config.toml on Linux and
macOS) and is created with defaults on first use:

	[api]
	base_url = "https://ord.uib.no/api/suggest"
	detail_url = "https://ordbokene.no/bm/search"
	dicts = ["bm", "nn"]
	limit = 50
	include = "ef"
	timeout_ms = 0

	[search]
	debounce_ms = 300
	default_mode = "pattern"
	pattern_len = 3
	max_letters = 30
	history_size = 200

	[server]
	addr = ":8080"
	read_timeout_ms = 5000
	write_timeout_ms = 10000
	enable_ws = true

	[cli]
	default_mode = "text"
	show_links = true
	default_no_filter = false

A malformed file is recovered section by section; whatever cannot be read
falls back to the defaults.
*/
package config

import (
	"path/filepath"
	"time"

	"github.com/bastiangx/ordsok/internal/utils"
	"github.com/bastiangx/ordsok/pkg/query"
	"github.com/charmbracelet/log"
)

// FileName is the config file name inside the config dir
const FileName = "config.toml"

// Config holds the entire config structure
type Config struct {
	API    APIConfig    `toml:"api"`
	Search SearchConfig `toml:"search"`
	Server ServerConfig `toml:"server"`
	CLI    CliConfig    `toml:"cli"`
}

// APIConfig describes how to reach the lookup service.
type APIConfig struct {
	BaseURL   string   `toml:"base_url"`
	DetailURL string   `toml:"detail_url"`
	Dicts     []string `toml:"dicts"`
	Limit     int      `toml:"limit"`
	Include   string   `toml:"include"`
	TimeoutMs int      `toml:"timeout_ms"`
}

// SearchConfig has search session options.
type SearchConfig struct {
	DebounceMs  int    `toml:"debounce_ms"`
	DefaultMode string `toml:"default_mode"`
	PatternLen  int    `toml:"pattern_len"`
	MaxLetters  int    `toml:"max_letters"`
	HistorySize int    `toml:"history_size"`
}

// ServerConfig has http server related options.
type ServerConfig struct {
	Addr           string `toml:"addr"`
	ReadTimeoutMs  int    `toml:"read_timeout_ms"`
	WriteTimeoutMs int    `toml:"write_timeout_ms"`
	EnableWS       bool   `toml:"enable_ws"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultMode     string `toml:"default_mode"`
	ShowLinks       bool   `toml:"show_links"`
	DefaultNoFilter bool   `toml:"default_no_filter"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://ord.uib.no/api/suggest",
			DetailURL: "https://ordbokene.no/bm/search",
			Dicts:     []string{"bm", "nn"},
			Limit:     50,
			Include:   "ef",
			TimeoutMs: 0,
		},
		Search: SearchConfig{
			DebounceMs:  300,
			DefaultMode: "pattern",
			PatternLen:  3,
			MaxLetters:  query.MaxLength,
			HistorySize: 200,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeoutMs:  5000,
			WriteTimeoutMs: 10000,
			EnableWS:       true,
		},
		CLI: CliConfig{
			DefaultMode:     "text",
			ShowLinks:       true,
			DefaultNoFilter: false,
		},
	}
}

// Timeout returns the request timeout, 0 meaning the transport default
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

// Debounce returns the keystroke quiet interval
func (s SearchConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMs) * time.Millisecond
}

// Mode parses DefaultMode, falling back to pattern mode
func (s SearchConfig) Mode() query.Kind {
	if k, ok := query.ParseKind(s.DefaultMode); ok && s.DefaultMode != "" {
		return k
	}
	return query.KindPattern
}

// ReadTimeout returns the http read timeout
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

// WriteTimeout returns the http write timeout
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMs) * time.Millisecond
}

// Normalize clamps out of range values back to defaults
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.API.DetailURL == "" {
		c.API.DetailURL = def.API.DetailURL
	}
	if len(c.API.Dicts) == 0 {
		c.API.Dicts = def.API.Dicts
	}
	if c.API.Limit < 1 {
		c.API.Limit = def.API.Limit
	}
	if c.API.TimeoutMs < 0 {
		c.API.TimeoutMs = 0
	}
	if c.Search.DebounceMs < 0 {
		c.Search.DebounceMs = def.Search.DebounceMs
	}
	if c.Search.MaxLetters < 1 || c.Search.MaxLetters > query.MaxLength {
		c.Search.MaxLetters = def.Search.MaxLetters
	}
	if c.Search.PatternLen < 1 || c.Search.PatternLen > c.Search.MaxLetters {
		c.Search.PatternLen = def.Search.PatternLen
	}
	if c.Search.HistorySize < 1 {
		c.Search.HistorySize = def.Search.HistorySize
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() string {
	return utils.NewPathResolver().GetConfigPath(FileName)
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/ordsok/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if utils.FileExists(customConfigPath) {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s. Trying default path...", customConfigPath)
		}
	}

	defaultPath := GetDefaultConfigPath()
	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	config.Normalize()
	return config, nil
}

// tryPartialParse attempts to parse a TOML file
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "api"); ok {
		extractAPIConfig(section, &config.API)
	}
	if section, ok := utils.ExtractSection(tempConfig, "search"); ok {
		extractSearchConfig(section, &config.Search)
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(section, &config.CLI)
	}
	config.Normalize()
	return config, nil
}

// extractAPIConfig extracts api configuration from a map
func extractAPIConfig(data map[string]any, api *APIConfig) {
	if val, ok := utils.ExtractString(data, "base_url"); ok {
		api.BaseURL = val
	}
	if val, ok := utils.ExtractString(data, "detail_url"); ok {
		api.DetailURL = val
	}
	if val, ok := utils.ExtractStringSlice(data, "dicts"); ok {
		api.Dicts = val
	}
	if val, ok := utils.ExtractInt64(data, "limit"); ok {
		api.Limit = val
	}
	if val, ok := utils.ExtractString(data, "include"); ok {
		api.Include = val
	}
	if val, ok := utils.ExtractInt64(data, "timeout_ms"); ok {
		api.TimeoutMs = val
	}
}

// extractSearchConfig extracts search configuration from a map
func extractSearchConfig(data map[string]any, search *SearchConfig) {
	if val, ok := utils.ExtractInt64(data, "debounce_ms"); ok {
		search.DebounceMs = val
	}
	if val, ok := utils.ExtractString(data, "default_mode"); ok {
		search.DefaultMode = val
	}
	if val, ok := utils.ExtractInt64(data, "pattern_len"); ok {
		search.PatternLen = val
	}
	if val, ok := utils.ExtractInt64(data, "max_letters"); ok {
		search.MaxLetters = val
	}
	if val, ok := utils.ExtractInt64(data, "history_size"); ok {
		search.HistorySize = val
	}
}

// extractServerConfig extracts server configuration from a map
func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractString(data, "addr"); ok {
		server.Addr = val
	}
	if val, ok := utils.ExtractInt64(data, "read_timeout_ms"); ok {
		server.ReadTimeoutMs = val
	}
	if val, ok := utils.ExtractInt64(data, "write_timeout_ms"); ok {
		server.WriteTimeoutMs = val
	}
	if val, ok := utils.ExtractBool(data, "enable_ws"); ok {
		server.EnableWS = val
	}
}

// extractCliConfig extracts CLI config from a map
func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractString(data, "default_mode"); ok {
		cli.DefaultMode = val
	}
	if val, ok := utils.ExtractBool(data, "show_links"); ok {
		cli.ShowLinks = val
	}
	if val, ok := utils.ExtractBool(data, "default_no_filter"); ok {
		cli.DefaultNoFilter = val
	}
}

// RebuildConfigFile force creates a new config.toml at path, or the default path when empty
func RebuildConfigFile(path string) (string, error) {
	if path == "" {
		path = GetDefaultConfigPath()
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	return path, SaveConfig(DefaultConfig(), path)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		return GetDefaultConfigPath()
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}
