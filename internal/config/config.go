package config

import (
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"
)

// TLS modes shared by the IMAP and SMTP connections
const (
	TLSModeImplicit = "tls"
	TLSModeStartTLS = "starttls"
	TLSModeNone     = "none"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server ports
	APIPort int

	// Storage
	AttachmentStoragePath string
	AttachmentBaseURL     string

	// Logging
	LogLevel string

	// Security
	APIKey         string
	AppEnv         string
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
	TrustProxy     bool

	// Operator identity
	OperatorEmail string
	OperatorName  string

	// Mailbox retrieval
	IMAP MailServer
	// IMAPMailbox is the single mailbox that is synchronized
	IMAPMailbox string

	// Mail submission
	SMTP MailServer

	// Synchronization
	SyncInterval       time.Duration
	SyncTimeout        time.Duration
	SyncCooldown       time.Duration
	SyncBatchSize      int
	SubjectMatchWindow time.Duration
}

// MailServer holds connection settings for a mail protocol endpoint
type MailServer struct {
	Host     string
	Port     int
	Username string
	Password string
	TLSMode  string
}

// Addr returns host:port
func (s MailServer) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Required: DATABASE_URL
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	// Required: OPERATOR_EMAIL
	cfg.OperatorEmail = strings.TrimSpace(os.Getenv("OPERATOR_EMAIL"))
	if cfg.OperatorEmail == "" {
		return nil, fmt.Errorf("OPERATOR_EMAIL is required but not set")
	}
	cfg.OperatorName = os.Getenv("OPERATOR_NAME")

	var err error

	// API_PORT (default: 8080)
	if cfg.APIPort, err = intEnv("API_PORT", 8080); err != nil {
		return nil, err
	}

	// ATTACHMENT_STORAGE_PATH (default: ./attachments)
	cfg.AttachmentStoragePath = os.Getenv("ATTACHMENT_STORAGE_PATH")
	if cfg.AttachmentStoragePath == "" {
		cfg.AttachmentStoragePath = "./attachments"
	}

	// ATTACHMENT_BASE_URL (default: served by this API)
	cfg.AttachmentBaseURL = os.Getenv("ATTACHMENT_BASE_URL")
	if cfg.AttachmentBaseURL == "" {
		cfg.AttachmentBaseURL = fmt.Sprintf("http://localhost:%d/api/files", cfg.APIPort)
	}

	// LOG_LEVEL (default: info)
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// Security configuration
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.AppEnv = os.Getenv("APP_ENV")
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	if cfg.RateLimit, err = floatEnv("RATE_LIMIT_REQUESTS", 10); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = intEnv("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.TrustProxy, err = boolEnv("TRUST_PROXY", false); err != nil {
		return nil, err
	}

	// IMAP (default port 993, implicit TLS)
	if cfg.IMAP, err = loadMailServer("IMAP", 993); err != nil {
		return nil, err
	}
	cfg.IMAPMailbox = os.Getenv("IMAP_MAILBOX")
	if cfg.IMAPMailbox == "" {
		cfg.IMAPMailbox = "INBOX"
	}

	// SMTP (default port 465, implicit TLS)
	if cfg.SMTP, err = loadMailServer("SMTP", 465); err != nil {
		return nil, err
	}

	// Synchronization
	if cfg.SyncInterval, err = durationEnv("SYNC_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SyncTimeout, err = durationEnv("SYNC_TIMEOUT", 4*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SyncCooldown, err = durationEnv("SYNC_COOLDOWN", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SyncBatchSize, err = intEnv("SYNC_BATCH_SIZE", 200); err != nil {
		return nil, err
	}
	if cfg.SubjectMatchWindow, err = durationEnv("SUBJECT_MATCH_WINDOW", 30*24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Production-specific validation
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.AttachmentStoragePath == "" {
		return fmt.Errorf("AttachmentStoragePath cannot be empty")
	}
	if _, err := mail.ParseAddress(c.OperatorEmail); err != nil {
		return fmt.Errorf("OperatorEmail is not a valid address: %w", err)
	}
	if err := c.IMAP.validate("IMAP"); err != nil {
		return err
	}
	if err := c.SMTP.validate("SMTP"); err != nil {
		return err
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("SyncInterval must be positive")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("RateLimit and RateBurst must not be negative")
	}
	if c.SyncBatchSize <= 0 {
		return fmt.Errorf("SyncBatchSize must be positive")
	}
	if c.SubjectMatchWindow <= 0 {
		return fmt.Errorf("SubjectMatchWindow must be positive")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	// Check for sslmode=disable in database URL
	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	if c.IMAP.TLSMode == TLSModeNone || c.SMTP.TLSMode == TLSModeNone {
		return fmt.Errorf("unencrypted mail transports are not allowed in production")
	}

	return nil
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.String("storage_path", c.AttachmentStoragePath),
		slog.String("attachment_base_url", c.AttachmentBaseURL),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Any("allowed_origins", c.AllowedOrigins),
		slog.Float64("rate_limit", c.RateLimit),
		slog.Bool("trust_proxy", c.TrustProxy),
		slog.String("operator_email", c.OperatorEmail),
		slog.String("imap_addr", c.IMAP.Addr()),
		slog.String("imap_tls_mode", c.IMAP.TLSMode),
		slog.String("imap_mailbox", c.IMAPMailbox),
		slog.String("smtp_addr", c.SMTP.Addr()),
		slog.String("smtp_tls_mode", c.SMTP.TLSMode),
		slog.Duration("sync_interval", c.SyncInterval),
		slog.Duration("sync_timeout", c.SyncTimeout),
		slog.Duration("sync_cooldown", c.SyncCooldown),
		slog.Int("sync_batch_size", c.SyncBatchSize),
		slog.Duration("subject_match_window", c.SubjectMatchWindow),
	)
}

// SlogLevel maps LogLevel onto a slog.Level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (s MailServer) validate(prefix string) error {
	if s.Host == "" {
		return fmt.Errorf("%s_HOST cannot be empty", prefix)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("%s_PORT must be between 1 and 65535", prefix)
	}
	switch s.TLSMode {
	case TLSModeImplicit, TLSModeStartTLS, TLSModeNone:
	default:
		return fmt.Errorf("%s_TLS_MODE must be one of tls, starttls, none", prefix)
	}
	return nil
}

func loadMailServer(prefix string, defaultPort int) (MailServer, error) {
	s := MailServer{
		Host:     os.Getenv(prefix + "_HOST"),
		Username: os.Getenv(prefix + "_USERNAME"),
		Password: os.Getenv(prefix + "_PASSWORD"),
		TLSMode:  strings.ToLower(os.Getenv(prefix + "_TLS_MODE")),
	}
	if s.TLSMode == "" {
		s.TLSMode = TLSModeImplicit
	}

	port, err := intEnv(prefix+"_PORT", defaultPort)
	if err != nil {
		return s, err
	}
	s.Port = port
	return s, nil
}

func intEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func floatEnv(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return v, nil
}
