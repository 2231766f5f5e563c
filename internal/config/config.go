package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "TELESERVER"
	defaultHTTPAddress     = "0.0.0.0:3000"
	defaultHTTPTimeout     = 15 * time.Second
	defaultStoreBackend    = StoreBackendSupabase
	defaultSupabaseTable   = "users"
	defaultSupabaseTimeout = 10 * time.Second
	defaultMaxFieldLength  = 100
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
)

// Store backends selectable through store.backend.
const (
	StoreBackendSupabase = "supabase"
	StoreBackendDatabase = "database"
)

// legacyEnv maps config keys to the unprefixed variable names deployments already use.
var legacyEnv = map[string]string{
	"telegram.bot_token": "TELEGRAM_BOT_TOKEN",
	"supabase.url":       "SUPABASE_URL",
	"supabase.key":       "SUPABASE_KEY",
	"database.url":       "DATABASE_URL",
	"http.port":          "PORT",
}

// AppConfig captures runtime configuration for the login service.
type AppConfig struct {
	HTTPAddress      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	TelegramBotToken string
	StoreBackend     string
	SupabaseURL      string
	SupabaseKey      string
	SupabaseTable    string
	SupabaseTimeout  time.Duration
	DatabaseURL      string
	MaxFieldLength   int
	AllowedOrigins   []string
	LogLevel         string
	LogFormat        string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	for key, legacyName := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = configViper.BindEnv(key, prefixed, legacyName)
	}

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.read_timeout", defaultHTTPTimeout)
	configViper.SetDefault("http.write_timeout", defaultHTTPTimeout)
	configViper.SetDefault("store.backend", defaultStoreBackend)
	configViper.SetDefault("supabase.table", defaultSupabaseTable)
	configViper.SetDefault("supabase.timeout", defaultSupabaseTimeout)
	configViper.SetDefault("users.max_field_length", defaultMaxFieldLength)
	configViper.SetDefault("cors.allowed_origins", []string{"*"})
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		HTTPReadTimeout:  configViper.GetDuration("http.read_timeout"),
		HTTPWriteTimeout: configViper.GetDuration("http.write_timeout"),
		TelegramBotToken: configViper.GetString("telegram.bot_token"),
		StoreBackend:     strings.ToLower(strings.TrimSpace(configViper.GetString("store.backend"))),
		SupabaseURL:      strings.TrimSpace(configViper.GetString("supabase.url")),
		SupabaseKey:      configViper.GetString("supabase.key"),
		SupabaseTable:    configViper.GetString("supabase.table"),
		SupabaseTimeout:  configViper.GetDuration("supabase.timeout"),
		DatabaseURL:      strings.TrimSpace(configViper.GetString("database.url")),
		MaxFieldLength:   configViper.GetInt("users.max_field_length"),
		AllowedOrigins:   splitList(configViper.GetStringSlice("cors.allowed_origins")),
		LogLevel:         configViper.GetString("log.level"),
		LogFormat:        configViper.GetString("log.format"),
	}

	address, err := listenAddress(cfg.HTTPAddress, configViper.GetString("http.port"))
	if err != nil {
		return AppConfig{}, err
	}
	cfg.HTTPAddress = address

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.TelegramBotToken) == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	switch c.StoreBackend {
	case StoreBackendSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("supabase.url is required")
		}
		if strings.TrimSpace(c.SupabaseKey) == "" {
			return fmt.Errorf("supabase.key is required")
		}
	case StoreBackendDatabase:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database.url is required")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", StoreBackendSupabase, StoreBackendDatabase, c.StoreBackend)
	}
	if c.MaxFieldLength <= 0 {
		return fmt.Errorf("users.max_field_length must be positive")
	}
	return nil
}

// listenAddress replaces the port of address with http.port (PORT) when one is set.
func listenAddress(address, port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		return address, nil
	}
	number, err := strconv.Atoi(port)
	if err != nil || number < 0 || number > 65535 {
		return "", fmt.Errorf("http.port must be a port number, got %q", port)
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(address))
	if err != nil {
		host = strings.TrimSpace(address)
	}
	return net.JoinHostPort(host, port), nil
}

// splitList accepts both list values and a single comma separated env value.
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
