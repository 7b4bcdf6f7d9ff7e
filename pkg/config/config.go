package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Gateway   GatewayConfig
	Stripe    StripeConfig
	Fees      FeesConfig
	Messaging MessagingConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	BigQuery  BigQueryConfig
	Outbox    OutboxConfig
	Eventing  EventingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GIGBROKER_APP_ENV" required:"true"`
	Port         string `envconfig:"GIGBROKER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GIGBROKER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GIGBROKER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GIGBROKER_DB_DSN"`
	Driver string `envconfig:"GIGBROKER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GIGBROKER_DB_HOST"`
	LegacyPort     int    `envconfig:"GIGBROKER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GIGBROKER_DB_USER"`
	LegacyPassword string `envconfig:"GIGBROKER_DB_PASSWORD"`
	LegacyName     string `envconfig:"GIGBROKER_DB_NAME"`
	LegacySSLMode  string `envconfig:"GIGBROKER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GIGBROKER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GIGBROKER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GIGBROKER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GIGBROKER_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"GIGBROKER_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GIGBROKER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GIGBROKER_REDIS_ADDR"`
	Password     string        `envconfig:"GIGBROKER_REDIS_PASSWORD"`
	DB           int           `envconfig:"GIGBROKER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GIGBROKER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GIGBROKER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GIGBROKER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GIGBROKER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GIGBROKER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GIGBROKER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GIGBROKER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GIGBROKER_JWT_EXPIRATION_MINUTES" default:"60"`
}

// GatewayConfig holds the Square credentials used for escrow charges/refunds.
type GatewayConfig struct {
	AccessToken    string        `envconfig:"GIGBROKER_GATEWAY_ACCESS_TOKEN"`
	Env            string        `envconfig:"GIGBROKER_GATEWAY_ENV" default:"sandbox"`
	LocationID     string        `envconfig:"GIGBROKER_GATEWAY_LOCATION_ID"`
	WebhookSecret  string        `envconfig:"GIGBROKER_GATEWAY_WEBHOOK_SECRET"`
	Currency       string        `envconfig:"GIGBROKER_GATEWAY_CURRENCY" default:"BRL"`
	RequestTimeout time.Duration `envconfig:"GIGBROKER_GATEWAY_REQUEST_TIMEOUT" default:"20s"`
}

// Environment returns the normalized gateway environment (sandbox/production).
func (g GatewayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(g.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type StripeConfig struct {
	APIKey string `envconfig:"GIGBROKER_STRIPE_API_KEY"`
	Env    string `envconfig:"GIGBROKER_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// FeesConfig configures the platform fee split in basis points per plan tier.
type FeesConfig struct {
	StandardBPS int64 `envconfig:"GIGBROKER_FEE_STANDARD_BPS" default:"1000"`
	ProBPS      int64 `envconfig:"GIGBROKER_FEE_PRO_BPS" default:"500"`
}

type MessagingConfig struct {
	WarningThreshold  int           `envconfig:"GIGBROKER_MESSAGING_WARNING_THRESHOLD" default:"1"`
	SuspensionWindow  time.Duration `envconfig:"GIGBROKER_MESSAGING_SUSPENSION_WINDOW" default:"24h"`
	RetainOriginalFor time.Duration `envconfig:"GIGBROKER_MESSAGING_RETAIN_ORIGINAL_FOR" default:"2160h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GIGBROKER_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GIGBROKER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GIGBROKER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"GIGBROKER_PUBSUB_DOMAIN_TOPIC" default:"gb-domain-events"`
	NotificationSubscription string `envconfig:"GIGBROKER_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
	AnalyticsSubscription    string `envconfig:"GIGBROKER_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset              string `envconfig:"GIGBROKER_BIGQUERY_DATASET" default:"gigbroker"`
	SettlementFactsTable string `envconfig:"GIGBROKER_BIGQUERY_SETTLEMENT_TABLE" default:"settlement_facts"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GIGBROKER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GIGBROKER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GIGBROKER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"GIGBROKER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
