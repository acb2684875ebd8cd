package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"creditledger/crypto"
	nativecommon "creditledger/native/common"
)

const (
	defaultListenAddress  = ":8545"
	defaultDataDir        = "./credit-data"
	defaultIssuer         = "creditd"
	defaultAudience       = "creditledger"
	defaultRequestsPerMin = 120
	defaultBurst          = 20
	minSecretLength       = 32

	// EnvJWTSecret overrides Auth.HMACSecret when set.
	EnvJWTSecret = "CREDITD_JWT_SECRET"
	// EnvAdminAddress overrides AdminAddress when set.
	EnvAdminAddress = "CREDITD_ADMIN_ADDRESS"
)

// Config is the creditd daemon configuration. AllowedOrigins lists the CORS
// origins of browser dashboards; empty allows any origin.
type Config struct {
	ListenAddress  string          `toml:"ListenAddress" yaml:"listen"`
	DataDir        string          `toml:"DataDir" yaml:"data_dir"`
	InMemory       bool            `toml:"InMemory" yaml:"in_memory"`
	AdminAddress   string          `toml:"AdminAddress" yaml:"admin_address"`
	Environment    string          `toml:"Environment" yaml:"environment"`
	LogLevel       string          `toml:"LogLevel" yaml:"log_level"`
	AllowedOrigins []string        `toml:"AllowedOrigins" yaml:"allowed_origins"`
	Auth           AuthConfig      `toml:"Auth" yaml:"auth"`
	RateLimit      RateLimitConfig `toml:"RateLimit" yaml:"rate_limit"`
	Telemetry      TelemetryConfig `toml:"Telemetry" yaml:"telemetry"`
	Pauses         PauseConfig     `toml:"Pauses" yaml:"pauses"`
}

// AuthConfig configures the bearer tokens that carry caller identities.
type AuthConfig struct {
	HMACSecret       string `toml:"HMACSecret" yaml:"hmac_secret"`
	Issuer           string `toml:"Issuer" yaml:"issuer"`
	Audience         string `toml:"Audience" yaml:"audience"`
	ClockSkewSeconds int    `toml:"ClockSkewSeconds" yaml:"clock_skew_seconds"`
}

// RateLimitConfig throttles RPC callers. TrustedProxies lists the reverse
// proxies whose X-Forwarded-For and X-Real-IP headers identify the client.
type RateLimitConfig struct {
	RequestsPerMinute float64  `toml:"RequestsPerMinute" yaml:"requests_per_minute"`
	Burst             int      `toml:"Burst" yaml:"burst"`
	TrustedProxies    []string `toml:"TrustedProxies" yaml:"trusted_proxies"`
}

type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
}

// PauseConfig lets operators hold modules paused from boot regardless of the
// ledger's own pause flag.
type PauseConfig struct {
	Credit bool `toml:"Credit" yaml:"credit"`
}

// StaticPauses converts the pause table into a pause view.
func (p PauseConfig) StaticPauses() nativecommon.StaticPauses {
	return nativecommon.StaticPauses{"credit": p.Credit}
}

// Load reads the daemon configuration. TOML files are created with defaults
// when missing; .yaml and .yml files must exist.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("config path required")
	}
	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if _, err := os.Stat(path); os.IsNotExist(err) {
			created, err := createDefault(path)
			if err != nil {
				return nil, err
			}
			cfg = created
			break
		}
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0].String())
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.Auth.HMACSecret = secret
	}
	if admin := strings.TrimSpace(os.Getenv(EnvAdminAddress)); admin != "" {
		cfg.AdminAddress = admin
	}
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.AdminAddress = strings.TrimSpace(cfg.AdminAddress)
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	origins := cfg.AllowedOrigins[:0]
	for _, origin := range cfg.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.AllowedOrigins = origins
	cfg.Auth.HMACSecret = strings.TrimSpace(cfg.Auth.HMACSecret)
	if strings.TrimSpace(cfg.Auth.Issuer) == "" {
		cfg.Auth.Issuer = defaultIssuer
	}
	if strings.TrimSpace(cfg.Auth.Audience) == "" {
		cfg.Auth.Audience = defaultAudience
	}
	if cfg.Auth.ClockSkewSeconds <= 0 {
		cfg.Auth.ClockSkewSeconds = 120
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = defaultRequestsPerMin
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = defaultBurst
	}
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
}

func (cfg *Config) validate() error {
	if cfg.AdminAddress == "" {
		return fmt.Errorf("AdminAddress is required")
	}
	if _, err := crypto.ParseAddress(cfg.AdminAddress); err != nil {
		return fmt.Errorf("AdminAddress: %w", err)
	}
	if len(cfg.Auth.HMACSecret) < minSecretLength {
		return fmt.Errorf("Auth.HMACSecret must be at least %d characters (or set %s)", minSecretLength, EnvJWTSecret)
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LogLevel %q is not one of debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("RateLimit.RequestsPerMinute must not be negative")
	}
	if cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("RateLimit.Burst must not be negative")
	}
	if (cfg.Telemetry.Metrics || cfg.Telemetry.Traces) && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("Telemetry.Endpoint is required when exporters are enabled")
	}
	return nil
}

// createDefault writes a fresh configuration together with a newly generated
// admin key stored next to it.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	keyPath := DefaultAdminKeyPath(path)
	if err := writeFile(keyPath, []byte(hex.EncodeToString(key.Bytes())+"\n"), 0o600); err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress: defaultListenAddress,
		DataDir:       defaultDataDir,
		AdminAddress:  key.PubKey().Address().Hex(),
		Auth: AuthConfig{
			HMACSecret: hex.EncodeToString(secret),
			Issuer:     defaultIssuer,
			Audience:   defaultAudience,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: defaultRequestsPerMin, Burst: defaultBurst},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultAdminKeyPath is where createDefault stores the generated admin key.
func DefaultAdminKeyPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "admin.key")
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func writeFile(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, mode)
}
