package authtokens

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/talatkuyuk/authtokens/internal/rate"
	"github.com/talatkuyuk/authtokens/store"
	"github.com/talatkuyuk/authtokens/token"
)

// Builder defines a public type used by authtokens APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	store     store.Store
	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithStore describes the withstore operation and its observable behavior.
//
// WithStore installs a custom persistence backend instead of the default
// Redis store, for example [github.com/talatkuyuk/authtokens/pgstore].
// WithStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backing := b.store
	if backing == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or custom store required")
		}
		backing = store.NewRedisStore(b.redis, cfg.Store.KeyPrefix)
	}

	throttling := cfg.RateLimit.EnableRotateThrottle || cfg.RateLimit.EnableIssueThrottle
	if throttling && b.redis == nil {
		return nil, errors.New("rate limiting requires redis client")
	}

	engine := &Engine{
		config: cfg,
		store:  backing,
	}

	tm, err := token.NewManager(token.Config{
		SigningMethod: cfg.JWT.SigningMethod,
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = tm

	if throttling {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			EnableRotateThrottle: cfg.RateLimit.EnableRotateThrottle,
			MaxRotateAttempts:    cfg.RateLimit.MaxRotateAttempts,
			RotateCooldown:       cfg.RateLimit.RotateCooldown,
			EnableIssueThrottle:  cfg.RateLimit.EnableIssueThrottle,
			MaxIssueAttempts:     cfg.RateLimit.MaxIssueAttempts,
			IssueCooldown:        cfg.RateLimit.IssueCooldown,
		})
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
