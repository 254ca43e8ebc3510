// Package config provides application configuration management using Viper.
// It supports loading from a .env file, environment variables, config files, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Session backends.
const (
	SessionBackendMemory   = "memory"
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)

// DefaultSystemPrompt instructs the LLM fallback. It must never invent listings.
const DefaultSystemPrompt = `Eres un asesor inmobiliario de Blue Home Inmobiliaria en Colombia. ` +
	`Responde en español, de forma breve y amable. No inventes inmuebles, precios ni disponibilidad: ` +
	`si el cliente busca un inmueble, pídele en orden el tipo (casa, apartamento, apartaestudio o local), ` +
	`su presupuesto máximo y el número de habitaciones, o el código del inmueble si lo tiene.`

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Catalog   CatalogConfig
	LLM       LLMConfig
	Session   SessionConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Messenger MessengerConfig
	Fees      FeesConfig
	Company   CompanyConfig
	Intents   map[string]string
	Admin     AdminConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	Environment  string
	MaxBodyBytes int64
	// TrustProxy takes the client IP from X-Forwarded-For and X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// CatalogConfig points at the spreadsheet export holding the listings.
type CatalogConfig struct {
	// CSVURL is an http(s) URL, a file:// URL or a plain path. Empty means no catalog.
	CSVURL     string
	TTL        time.Duration
	Timeout    time.Duration
	MaxResults int
}

// LLMConfig holds settings for the OpenAI-compatible fallback.
type LLMConfig struct {
	Enabled      bool
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int
	Temperature  float32
	SystemPrompt string
	HistoryLimit int
	Timeout      time.Duration
}

// SessionConfig selects the conversation state backend.
type SessionConfig struct {
	Backend         string
	TTL             time.Duration
	CleanupInterval time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Enabled               bool
	Host                  string
	Port                  int
	User                  string
	Password              string
	Name                  string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// ConnectionString returns a PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// MessengerConfig holds outbound delivery settings.
type MessengerConfig struct {
	ManyChatAPIURL      string
	ManyChatAPIToken    string
	AdvisorSubscriberID string
	LeadWebhookURL      string
	Timeout             time.Duration
	// RetryAttempts is how many times a failed notification is retried.
	RetryAttempts int
}

// ManyChatEnabled reports whether lead notifications can go to an advisor over ManyChat.
func (m *MessengerConfig) ManyChatEnabled() bool {
	return m.ManyChatAPIToken != "" && m.AdvisorSubscriberID != ""
}

// FeesConfig holds the percentages used by the fee simulator.
type FeesConfig struct {
	AdminPercent     float64
	VATPercent       float64
	InsurancePercent float64
}

// CompanyConfig holds the canned company information replies.
type CompanyConfig struct {
	Name         string
	Address      string
	Phone        string
	Hours        string
	Website      string
	About        string
	AdvisorPhone string
}

// AdminConfig protects the debug and admin endpoints.
type AdminConfig struct {
	// TokenHash is a bcrypt hash of the X-Admin-Token value. Empty disables the admin routes.
	TokenHash string
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	// Requests per window for each client IP on the API and admin routes.
	Requests int
	// ContactRequests per window for each chat contact.
	ContactRequests int
	Window          time.Duration
}

// Load reads configuration from a .env file, environment variables and config files.
// Environment variables take precedence over config file values.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/bluehome")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFoundErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := fromViper(v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:         v.GetString("server.host"),
			Port:         v.GetInt("server.port"),
			Environment:  v.GetString("server.env"),
			MaxBodyBytes: v.GetInt64("server.max_body_bytes"),
			TrustProxy:   v.GetBool("server.trust_proxy"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Catalog: CatalogConfig{
			CSVURL:     v.GetString("catalog.csv_url"),
			TTL:        v.GetDuration("catalog.ttl"),
			Timeout:    v.GetDuration("catalog.timeout"),
			MaxResults: v.GetInt("catalog.max_results"),
		},
		LLM: LLMConfig{
			Enabled:      v.GetBool("llm.enabled"),
			BaseURL:      v.GetString("llm.base_url"),
			APIKey:       v.GetString("llm.api_key"),
			Model:        v.GetString("llm.model"),
			MaxTokens:    v.GetInt("llm.max_tokens"),
			Temperature:  float32(v.GetFloat64("llm.temperature")),
			SystemPrompt: v.GetString("llm.system_prompt"),
			HistoryLimit: v.GetInt("llm.history_limit"),
			Timeout:      v.GetDuration("llm.timeout"),
		},
		Session: SessionConfig{
			Backend:         strings.ToLower(v.GetString("session.backend")),
			TTL:             v.GetDuration("session.ttl"),
			CleanupInterval: v.GetDuration("session.cleanup_interval"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Username: v.GetString("redis.username"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			Enabled:               v.GetBool("database.enabled"),
			Host:                  v.GetString("database.host"),
			Port:                  v.GetInt("database.port"),
			User:                  v.GetString("database.user"),
			Password:              v.GetString("database.password"),
			Name:                  v.GetString("database.name"),
			SSLMode:               v.GetString("database.sslmode"),
			MaxConnections:        v.GetInt("database.max_connections"),
			MaxIdleConnections:    v.GetInt("database.max_idle_connections"),
			ConnectionMaxLifetime: v.GetDuration("database.connection_max_lifetime"),
		},
		Messenger: MessengerConfig{
			ManyChatAPIURL:      v.GetString("messenger.manychat.api_url"),
			ManyChatAPIToken:    v.GetString("messenger.manychat.api_token"),
			AdvisorSubscriberID: v.GetString("messenger.advisor_subscriber_id"),
			LeadWebhookURL:      v.GetString("messenger.lead_webhook_url"),
			Timeout:             v.GetDuration("messenger.timeout"),
			RetryAttempts:       v.GetInt("messenger.retry_attempts"),
		},
		Fees: FeesConfig{
			AdminPercent:     v.GetFloat64("fees.admin_percent"),
			VATPercent:       v.GetFloat64("fees.vat_percent"),
			InsurancePercent: v.GetFloat64("fees.insurance_percent"),
		},
		Company: CompanyConfig{
			Name:         v.GetString("company.name"),
			Address:      v.GetString("company.address"),
			Phone:        v.GetString("company.phone"),
			Hours:        v.GetString("company.hours"),
			Website:      v.GetString("company.website"),
			About:        v.GetString("company.about"),
			AdvisorPhone: v.GetString("company.advisor_phone"),
		},
		Intents: v.GetStringMapString("intents"),
		Admin: AdminConfig{
			TokenHash: v.GetString("admin.token_hash"),
		},
		RateLimit: RateLimitConfig{
			Requests:        v.GetInt("rate_limit.requests"),
			ContactRequests: v.GetInt("rate_limit.contact_requests"),
			Window:          v.GetDuration("rate_limit.window"),
		},
	}
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.max_body_bytes", 64*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("catalog.ttl", "60s")
	v.SetDefault("catalog.timeout", "10s")
	v.SetDefault("catalog.max_results", 5)

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 400)
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.system_prompt", DefaultSystemPrompt)
	v.SetDefault("llm.history_limit", 10)
	v.SetDefault("llm.timeout", "20s")

	v.SetDefault("session.backend", SessionBackendMemory)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.cleanup_interval", "10m")

	v.SetDefault("redis.db", 0)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bluehome")
	v.SetDefault("database.name", "bluehome")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)
	v.SetDefault("database.connection_max_lifetime", "5m")

	v.SetDefault("messenger.manychat.api_url", "https://api.manychat.com")
	v.SetDefault("messenger.timeout", "10s")
	v.SetDefault("messenger.retry_attempts", 2)

	v.SetDefault("fees.admin_percent", 10)
	v.SetDefault("fees.vat_percent", 19)
	v.SetDefault("fees.insurance_percent", 2.5)

	v.SetDefault("company.name", "Blue Home Inmobiliaria")
	v.SetDefault("company.hours", "Lunes a viernes de 8:00 a.m. a 6:00 p.m. y sábados de 9:00 a.m. a 1:00 p.m.")
	v.SetDefault("company.about", "Somos Blue Home Inmobiliaria: arrendamos, vendemos y administramos inmuebles.")

	v.SetDefault("rate_limit.requests", 60)
	v.SetDefault("rate_limit.contact_requests", 20)
	v.SetDefault("rate_limit.window", "1m")
}

// Validate checks that every selected backend has the settings it needs.
// All missing keys are reported in one error.
func (c *Config) Validate() error {
	var missing []string

	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Redis.Addr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	case SessionBackendPostgres:
		if !c.Database.Enabled {
			missing = append(missing, "DATABASE_ENABLED")
		}
	default:
		return fmt.Errorf("invalid session backend %q (want memory, redis or postgres)", c.Session.Backend)
	}

	if c.Database.Enabled && c.Database.Password == "" {
		missing = append(missing, "DATABASE_PASSWORD")
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if c.Messenger.AdvisorSubscriberID != "" && c.Messenger.ManyChatAPIToken == "" {
		missing = append(missing, "MESSENGER_MANYCHAT_API_TOKEN")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive, got %s", c.Session.TTL)
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
