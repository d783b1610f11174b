package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	HTTP         HTTPConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Engine       EngineConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLUBLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"CLUBLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CLUBLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLUBLEDGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CLUBLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CLUBLEDGER_DB_DSN"`
	Driver string `envconfig:"CLUBLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CLUBLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"CLUBLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLUBLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"CLUBLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLUBLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLUBLEDGER_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"CLUBLEDGER_SQLITE_PATH" default:"clubledger.db"`

	MaxOpenConns    int           `envconfig:"CLUBLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLUBLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLUBLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLUBLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLUBLEDGER_REDIS_URL"`
	Address      string        `envconfig:"CLUBLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"CLUBLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLUBLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLUBLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLUBLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLUBLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLUBLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLUBLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// HTTPConfig covers the API edge: allowed browser origins and the per-caller
// request budget.
type HTTPConfig struct {
	CORSOrigins     []string      `envconfig:"CLUBLEDGER_CORS_ORIGINS" default:"http://localhost:3000"`
	RateLimit       int64         `envconfig:"CLUBLEDGER_RATE_LIMIT" default:"120"`
	RateLimitWindow time.Duration `envconfig:"CLUBLEDGER_RATE_LIMIT_WINDOW" default:"1m"`
}

type JWTConfig struct {
	Secret string `envconfig:"CLUBLEDGER_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"CLUBLEDGER_JWT_ISSUER" required:"true"`

	ExpirationMinutes int `envconfig:"CLUBLEDGER_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite        bool `envconfig:"CLUBLEDGER_USE_SQLITE" default:"false"`
	AutoMigrate      bool `envconfig:"CLUBLEDGER_AUTO_MIGRATE" default:"false"`
	DistributedLocks bool `envconfig:"CLUBLEDGER_DISTRIBUTED_LOCKS" default:"false"`
}

// EngineConfig bounds the consistency engine's waits and retries.
type EngineConfig struct {
	LookupTimeout       time.Duration `envconfig:"CLUBLEDGER_LOOKUP_TIMEOUT" default:"3s"`
	LockWait            time.Duration `envconfig:"CLUBLEDGER_LOCK_WAIT" default:"5s"`
	LockTTL             time.Duration `envconfig:"CLUBLEDGER_LOCK_TTL" default:"30s"`
	VersionRetries      int           `envconfig:"CLUBLEDGER_VERSION_RETRIES" default:"3"`
	StudentCodeAttempts int           `envconfig:"CLUBLEDGER_STUDENT_CODE_ATTEMPTS" default:"10"`
	SaleCodeAttempts    int           `envconfig:"CLUBLEDGER_SALE_CODE_ATTEMPTS" default:"5"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CLUBLEDGER_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"CLUBLEDGER_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"CLUBLEDGER_PUBSUB_NOTIFICATION_TOPIC" default:"club-notifications"`
	EmulatorHost      string `envconfig:"CLUBLEDGER_PUBSUB_EMULATOR_HOST"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CLUBLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CLUBLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CLUBLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"CLUBLEDGER_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"CLUBLEDGER_METRICS_PATH" default:"/metrics"`
}

// ensureDSN fills DSN from the CLUBLEDGER_DB_HOST/USER/NAME parts when no DSN
// is set. SQLite mode needs neither.
func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	parts := map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName}
	var missing []string
	for _, env := range legacyDBEnvVars {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("set %s, or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		user = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   "/" + db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
