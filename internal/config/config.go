// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Cookies is the raw browser cookie string for the marketplace
	// account. It must contain the unb (account id) and _m_h5_tk
	// (api sign token) cookies.
	Cookies string
	WSURL   string

	ToggleKeywords string
	DBPath         string
	BlacklistPath  string
	PromptDir      string

	APIKey       string
	ModelBaseURL string
	ModelName    string

	MaxUserHistory int
	EnableIntent   bool
	AdminAddr      string // empty disables the admin API

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	ManualModeTimeout time.Duration
	ReconnectDelay    time.Duration
	MaxHistory        int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Cookies:           getEnv("COOKIES_STR", ""),
		WSURL:             getEnv("WS_URL", "wss://wss-goofish.dingtalk.com/"),
		ToggleKeywords:    getEnv("TOGGLE_KEYWORDS", "。"),
		DBPath:            getEnv("DB_PATH", "./data/chat_history.db"),
		BlacklistPath:     getEnv("BLACKLIST_PATH", "./hmd.txt"),
		PromptDir:         getEnv("PROMPT_DIR", "./prompts"),
		APIKey:            getEnv("API_KEY", ""),
		ModelBaseURL:      getEnv("MODEL_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
		ModelName:         getEnv("MODEL_NAME", "qwen-max"),
		MaxUserHistory:    getEnvInt("MAX_USER_HISTORY", 5),
		EnableIntent:      getEnvBool("ENABLE_INTENT", true),
		AdminAddr:         getEnv("ADMIN_ADDR", ":8080"),
		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", 15*time.Second),
		HeartbeatTimeout:  getEnvDuration("HEARTBEAT_TIMEOUT", 5*time.Second),
		ManualModeTimeout: getEnvDuration("MANUAL_MODE_TIMEOUT", time.Hour),
		ReconnectDelay:    getEnvDuration("RECONNECT_DELAY", 5*time.Second),
		MaxHistory:        getEnvInt("MAX_HISTORY", 100),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Cookies == "" {
		return fmt.Errorf("COOKIES_STR cannot be empty")
	}
	if c.WSURL == "" {
		return fmt.Errorf("WS_URL cannot be empty")
	}
	if c.ToggleKeywords == "" {
		return fmt.Errorf("TOGGLE_KEYWORDS cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY cannot be empty")
	}
	if c.ModelBaseURL == "" {
		return fmt.Errorf("MODEL_BASE_URL cannot be empty")
	}
	if c.ModelName == "" {
		return fmt.Errorf("MODEL_NAME cannot be empty")
	}
	if c.MaxUserHistory <= 0 {
		return fmt.Errorf("MAX_USER_HISTORY must be > 0")
	}
	if c.MaxHistory <= 0 {
		return fmt.Errorf("MAX_HISTORY must be > 0")
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatTimeout <= 0 {
		return fmt.Errorf("heartbeat interval and timeout must be > 0")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("15s", "1h") and, for
// compatibility with older deployments, bare integers meaning seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
