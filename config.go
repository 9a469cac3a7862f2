package authtokens

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/talatkuyuk/authtokens/token"
)

// Config defines a public type used by authtokens APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT       JWTConfig
	TTL       TTLConfig
	Store     StoreConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// JWTConfig defines a public type used by authtokens APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	SigningMethod token.SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	AccessTTL     time.Duration
}

// TTLConfig holds the lifetime of each persisted token kind.
//
// TTLConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TTLConfig struct {
	Refresh       time.Duration
	ResetPassword time.Duration
	VerifyEmail   time.Duration
	VerifySignup  time.Duration
}

// StoreConfig defines a public type used by authtokens APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	// KeyPrefix namespaces every Redis key written by the engine.
	KeyPrefix string
	// OpTimeout bounds each store call. A timed-out call surfaces as
	// [ErrStoreUnavailable] and never mutates token state.
	OpTimeout time.Duration
}

// RateLimitConfig defines a public type used by authtokens APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	EnableRotateThrottle bool
	MaxRotateAttempts    int
	RotateCooldown       time.Duration
	EnableIssueThrottle  bool
	MaxIssueAttempts     int
	IssueCooldown        time.Duration
}

// AuditConfig defines a public type used by authtokens APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authtokens APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: token.MethodHS256,
			Issuer:        "authtokens",
			Leeway:        30 * time.Second,
			AccessTTL:     15 * time.Minute,
		},
		TTL: TTLConfig{
			Refresh:       30 * 24 * time.Hour,
			ResetPassword: time.Hour,
			VerifyEmail:   24 * time.Hour,
			VerifySignup:  24 * time.Hour,
		},
		Store: StoreConfig{
			KeyPrefix: "atk",
			OpTimeout: 3 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MaxRotateAttempts: 30,
			RotateCooldown:    time.Minute,
			MaxIssueAttempts:  5,
			IssueCooldown:     15 * time.Minute,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the package defaults. The signing key is left empty
// and must be set before [Builder.Build].
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("access ttl must be positive")
	}
	if c.TTL.Refresh <= 0 || c.TTL.ResetPassword <= 0 || c.TTL.VerifyEmail <= 0 || c.TTL.VerifySignup <= 0 {
		return errors.New("token ttls must be positive")
	}
	if c.JWT.AccessTTL >= c.TTL.Refresh {
		return errors.New("access ttl must be shorter than refresh ttl")
	}
	if c.Store.OpTimeout <= 0 {
		return errors.New("store op timeout must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}
	if c.RateLimit.EnableRotateThrottle && (c.RateLimit.MaxRotateAttempts <= 0 || c.RateLimit.RotateCooldown <= 0) {
		return errors.New("invalid rotate throttle configuration")
	}
	if c.RateLimit.EnableIssueThrottle && (c.RateLimit.MaxIssueAttempts <= 0 || c.RateLimit.IssueCooldown <= 0) {
		return errors.New("invalid issue throttle configuration")
	}
	return nil
}

type envConfig struct {
	SigningMethod   string        `env:"SIGNING_METHOD" envDefault:"hs256"`
	SigningKey      string        `env:"SIGNING_KEY"`
	PublicKey       string        `env:"PUBLIC_KEY"`
	Issuer          string        `env:"ISSUER" envDefault:"authtokens"`
	Audience        string        `env:"AUDIENCE"`
	Leeway          time.Duration `env:"LEEWAY" envDefault:"30s"`
	AccessTTL       time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL      time.Duration `env:"REFRESH_TTL" envDefault:"720h"`
	ResetTTL        time.Duration `env:"RESET_TTL" envDefault:"1h"`
	VerifyEmailTTL  time.Duration `env:"VERIFY_EMAIL_TTL" envDefault:"24h"`
	VerifySignupTTL time.Duration `env:"VERIFY_SIGNUP_TTL" envDefault:"24h"`
	KeyPrefix       string        `env:"KEY_PREFIX" envDefault:"atk"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`
	AuditEnabled    bool          `env:"AUDIT_ENABLED" envDefault:"false"`
	MetricsEnabled  bool          `env:"METRICS_ENABLED" envDefault:"true"`
}

// ConfigFromEnv builds a [Config] from AUTHTOKENS_* environment variables,
// falling back to the package defaults for anything unset.
func ConfigFromEnv() (Config, error) {
	var ec envConfig
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: "AUTHTOKENS_"}); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()
	cfg.JWT.SigningMethod = token.SigningMethod(ec.SigningMethod)
	cfg.JWT.PrivateKey = []byte(ec.SigningKey)
	cfg.JWT.PublicKey = []byte(ec.PublicKey)
	cfg.JWT.Issuer = ec.Issuer
	cfg.JWT.Audience = ec.Audience
	cfg.JWT.Leeway = ec.Leeway
	cfg.JWT.AccessTTL = ec.AccessTTL
	cfg.TTL.Refresh = ec.RefreshTTL
	cfg.TTL.ResetPassword = ec.ResetTTL
	cfg.TTL.VerifyEmail = ec.VerifyEmailTTL
	cfg.TTL.VerifySignup = ec.VerifySignupTTL
	cfg.Store.KeyPrefix = ec.KeyPrefix
	cfg.Store.OpTimeout = ec.StoreTimeout
	cfg.Audit.Enabled = ec.AuditEnabled
	cfg.Metrics.Enabled = ec.MetricsEnabled

	return cfg, nil
}
