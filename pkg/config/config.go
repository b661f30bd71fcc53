package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Store         StoreConfig
	Redis         RedisConfig
	Session       SessionConfig
	OAuth         OAuthConfig
	Billing       BillingConfig
	AuthRateLimit AuthRateLimitConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"SPARK_APP_ENV" required:"true"`
	Port         string   `envconfig:"SPARK_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"SPARK_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"SPARK_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"SPARK_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"SPARK_CORS_ORIGINS"`
	FrontendURL  string   `envconfig:"SPARK_FRONTEND_URL" default:"http://localhost:5173"`
}

// AllowedOrigins is the CORS allow list. SPARK_CORS_ORIGINS wins; otherwise
// only the frontend origin is allowed.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range a.CORSOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) > 0 {
		return out
	}
	if frontend := strings.TrimRight(strings.TrimSpace(a.FrontendURL), "/"); frontend != "" {
		return []string{frontend}
	}
	return nil
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StoreConfig struct {
	Driver      string `envconfig:"SPARK_STORE_DRIVER" default:"postgres"`
	DSN         string `envconfig:"SPARK_DB_DSN"`
	AutoMigrate bool   `envconfig:"SPARK_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"SPARK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SPARK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SPARK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SPARK_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	MongoURI      string        `envconfig:"SPARK_MONGO_URI"`
	MongoDatabase string        `envconfig:"SPARK_MONGO_DATABASE" default:"spark"`
	MongoTimeout  time.Duration `envconfig:"SPARK_MONGO_CONNECT_TIMEOUT" default:"10s"`
}

// NormalizedDriver returns the lower-cased driver name, defaulting to postgres.
func (s StoreConfig) NormalizedDriver() string {
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	if driver == "" {
		return StoreDriverPostgres
	}
	return driver
}

// IsSQL reports whether the store is backed by GORM.
func (s StoreConfig) IsSQL() bool {
	switch s.NormalizedDriver() {
	case StoreDriverPostgres, StoreDriverSQLite:
		return true
	}
	return false
}

func (s StoreConfig) validate() error {
	switch s.NormalizedDriver() {
	case StoreDriverPostgres, StoreDriverSQLite:
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("%s is required for store driver %q", EnvDBDSN, s.NormalizedDriver())
		}
	case StoreDriverMongo:
		if strings.TrimSpace(s.MongoURI) == "" {
			return fmt.Errorf("%s is required for store driver %q", EnvMongoURI, StoreDriverMongo)
		}
	default:
		return fmt.Errorf("unsupported store driver %q", s.Driver)
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SPARK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SPARK_REDIS_ADDR"`
	Password     string        `envconfig:"SPARK_REDIS_PASSWORD"`
	DB           int           `envconfig:"SPARK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SPARK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SPARK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SPARK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SPARK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SPARK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SessionConfig struct {
	Secret       string `envconfig:"SPARK_SESSION_SECRET" required:"true"`
	Issuer       string `envconfig:"SPARK_SESSION_ISSUER" required:"true"`
	TTLMinutes   int    `envconfig:"SPARK_SESSION_TTL_MINUTES" default:"10080"`
	CookieName   string `envconfig:"SPARK_SESSION_COOKIE_NAME" default:"spark_session"`
	CookieSecure bool   `envconfig:"SPARK_SESSION_COOKIE_SECURE" default:"false"`
	CookieDomain string `envconfig:"SPARK_SESSION_COOKIE_DOMAIN"`
}

// TTL returns the session lifetime configured in minutes.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLMinutes <= 0 {
		return 0
	}
	return time.Duration(s.TTLMinutes) * time.Minute
}

// Cookie returns the configured cookie name or the default.
func (s SessionConfig) Cookie() string {
	if name := strings.TrimSpace(s.CookieName); name != "" {
		return name
	}
	return DefaultSessionCookie
}

type OAuthConfig struct {
	ProviderName string   `envconfig:"SPARK_OAUTH_PROVIDER_NAME" default:"workos"`
	ClientID     string   `envconfig:"SPARK_OAUTH_CLIENT_ID" required:"true"`
	ClientSecret string   `envconfig:"SPARK_OAUTH_CLIENT_SECRET" required:"true"`
	RedirectURI  string   `envconfig:"SPARK_OAUTH_REDIRECT_URI" required:"true"`
	AuthURL      string   `envconfig:"SPARK_OAUTH_AUTH_URL" default:"https://api.workos.com/user_management/authorize"`
	TokenURL     string   `envconfig:"SPARK_OAUTH_TOKEN_URL" default:"https://api.workos.com/user_management/authenticate"`
	UserInfoURL  string   `envconfig:"SPARK_OAUTH_USERINFO_URL"`
	Scopes       []string `envconfig:"SPARK_OAUTH_SCOPES" default:"openid,email,profile"`
	AuthParams   []string `envconfig:"SPARK_OAUTH_AUTH_PARAMS" default:"provider=authkit"`
}

type BillingConfig struct {
	WebhookSecret     string        `envconfig:"SPARK_BILLING_WEBHOOK_SECRET" required:"true"`
	MonthlyProductIDs []string      `envconfig:"SPARK_BILLING_MONTHLY_PRODUCT_IDS" default:"MONTHLY_PRO_ID"`
	AnnualProductIDs  []string      `envconfig:"SPARK_BILLING_ANNUAL_PRODUCT_IDS" default:"ANNUAL_PRO_ID"`
	IdempotencyTTL    time.Duration `envconfig:"SPARK_BILLING_IDEMPOTENCY_TTL" default:"720h"`
	EnforceExpiry     bool          `envconfig:"SPARK_BILLING_ENFORCE_EXPIRY" default:"true"`
}

type AuthRateLimitConfig struct {
	RegisterWindow     time.Duration `envconfig:"SPARK_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SPARK_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SPARK_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type CronConfig struct {
	Interval    time.Duration `envconfig:"SPARK_CRON_INTERVAL" default:"1h"`
	ExpiryBatch int           `envconfig:"SPARK_CRON_EXPIRY_BATCH" default:"250"`
	// MetricsPort serves the worker's /metrics. Set it empty to disable.
	MetricsPort string        `envconfig:"SPARK_CRON_METRICS_PORT" default:"9090"`
}
