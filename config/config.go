package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"

	defaultSessionLifetime    = 24 * time.Hour
	defaultSessionIdleTimeout = 30 * time.Minute
	defaultRateLimitAttempts  = 5
	defaultRateLimitWindow    = 15 * time.Minute
	defaultResetTokenTTL      = time.Hour
	defaultTOTPIssuer         = "HealthBridge"

	defaultResetTokenPurgeSpec = "@every 1h"
	defaultRateLimitPruneSpec  = "@every 5m"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
		AllowOrigins []string `json:"allowOrigins" yaml:"allowOrigins"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	// Storage selects the persistence backend
	Storage *StorageConfig `json:"storage" yaml:"storage"`

	// Redis backs the shared session store and login rate limiter
	Redis *RedisConfig `json:"redis" yaml:"redis"`

	Session *SessionConfig `json:"session" yaml:"session"`

	RateLimit *RateLimitConfig `json:"rateLimit" yaml:"rateLimit"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	PasswordStrength *PasswordStrengthConfig `json:"passwordStrength" yaml:"passwordStrength"`

	// QRCode configuration for authenticator provisioning images
	QRCode *QRCodeConfig `json:"qrcode" yaml:"qrcode"`

	// PubSub configuration for event publishing
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	// Notifier configuration for the out-of-band email worker
	Notifier *NotifierConfig `json:"notifier" yaml:"notifier"`

	// Scheduler configuration for periodic maintenance jobs
	Scheduler *SchedulerConfig `json:"scheduler" yaml:"scheduler"`
}

// StorageConfig selects where portal records live
type StorageConfig struct {
	// Driver is "postgres" or "memory"
	Driver string `json:"driver" yaml:"driver"`

	// AutoMigrate creates tables and indexes on startup
	AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`
}

// RedisConfig defines the Redis connection
type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

// SessionConfig defines server-side session behaviour
type SessionConfig struct {
	// Store is "redis" or "memory"
	Store string `json:"store" yaml:"store"`

	// AbsoluteLifetime caps a session regardless of activity
	AbsoluteLifetime time.Duration `json:"absoluteLifetime" yaml:"absoluteLifetime"`

	// IdleTimeout expires a session after this much inactivity
	IdleTimeout time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
}

// RateLimitConfig defines the login attempt limiter
type RateLimitConfig struct {
	// Enabled is false in test deployments so automated suites are not throttled
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	Store       string        `json:"store" yaml:"store"`
	MaxAttempts int           `json:"maxAttempts" yaml:"maxAttempts"`
	Window      time.Duration `json:"window" yaml:"window"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost    int           `json:"bcryptCost" yaml:"bcryptCost"`
	TOTPIssuer    string        `json:"totpIssuer" yaml:"totpIssuer"`
	ResetTokenTTL time.Duration `json:"resetTokenTtl" yaml:"resetTokenTtl"`
}

// PasswordStrengthConfig defines password strength requirements
type PasswordStrengthConfig struct {
	MinLength        int  `json:"minLength" yaml:"minLength"`
	RequireUppercase bool `json:"requireUppercase" yaml:"requireUppercase"`
	RequireLowercase bool `json:"requireLowercase" yaml:"requireLowercase"`
	RequireNumbers   bool `json:"requireNumbers" yaml:"requireNumbers"`
	RequireSpecial   bool `json:"requireSpecial" yaml:"requireSpecial"`
	MaxLength        int  `json:"maxLength" yaml:"maxLength"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// QRCodeConfig defines QR code generation configuration
type QRCodeConfig struct {
	Size                 int    `json:"size" yaml:"size"`
	ErrorCorrectionLevel string `json:"errorCorrectionLevel" yaml:"errorCorrectionLevel"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "none", "local" for local HTTP or "google" for Google Pub/Sub
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`
}

// NotifierConfig defines the email worker
type NotifierConfig struct {
	// ResetLinkBaseURL is prefixed to reset tokens in emails
	ResetLinkBaseURL string `json:"resetLinkBaseUrl" yaml:"resetLinkBaseUrl"`
	FromAddress      string `json:"fromAddress" yaml:"fromAddress"`
}

// SchedulerConfig defines cron specs for maintenance jobs
type SchedulerConfig struct {
	Enabled             bool   `json:"enabled" yaml:"enabled"`
	ResetTokenPurgeSpec string `json:"resetTokenPurgeSpec" yaml:"resetTokenPurgeSpec"`
	RateLimitPruneSpec  string `json:"rateLimitPruneSpec" yaml:"rateLimitPruneSpec"`
}

// IsProduction reports whether the service runs with a production posture.
func (c *Config) IsProduction() bool {
	return c.Env.Env == "production"
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills the sections a minimal config file may omit.
func applyDefaults(cfg *Config) {
	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{Driver: "postgres"}
	}
	if cfg.Session == nil {
		cfg.Session = &SessionConfig{Store: "memory"}
	}
	if cfg.Session.AbsoluteLifetime <= 0 {
		cfg.Session.AbsoluteLifetime = defaultSessionLifetime
	}
	if cfg.Session.IdleTimeout <= 0 {
		cfg.Session.IdleTimeout = defaultSessionIdleTimeout
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = &RateLimitConfig{Enabled: cfg.Env.Env != "test", Store: "memory"}
	}
	if cfg.RateLimit.MaxAttempts <= 0 {
		cfg.RateLimit.MaxAttempts = defaultRateLimitAttempts
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = defaultRateLimitWindow
	}
	if cfg.Auth == nil {
		cfg.Auth = &AuthConfig{}
	}
	if cfg.Auth.TOTPIssuer == "" {
		cfg.Auth.TOTPIssuer = defaultTOTPIssuer
	}
	if cfg.Auth.ResetTokenTTL <= 0 {
		cfg.Auth.ResetTokenTTL = defaultResetTokenTTL
	}
	if cfg.PasswordStrength == nil {
		cfg.PasswordStrength = &PasswordStrengthConfig{
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireNumbers:   true,
			MaxLength:        72,
		}
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = &SchedulerConfig{}
	}
	if cfg.Scheduler.ResetTokenPurgeSpec == "" {
		cfg.Scheduler.ResetTokenPurgeSpec = defaultResetTokenPurgeSpec
	}
	if cfg.Scheduler.RateLimitPruneSpec == "" {
		cfg.Scheduler.RateLimitPruneSpec = defaultRateLimitPruneSpec
	}
	if cfg.Notifier == nil {
		cfg.Notifier = &NotifierConfig{}
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
