package config

const EnvPrefix = "CLUBLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "CLUBLEDGER_APP_ENV"
	EnvPort      = "CLUBLEDGER_APP_PORT"
	EnvLogLevel  = "CLUBLEDGER_LOG_LEVEL"
	EnvDBDSN     = "CLUBLEDGER_DB_DSN"
	EnvDBHost    = "CLUBLEDGER_DB_HOST"
	EnvDBPort    = "CLUBLEDGER_DB_PORT"
	EnvDBUser    = "CLUBLEDGER_DB_USER"
	EnvDBPass    = "CLUBLEDGER_DB_PASSWORD"
	EnvDBName    = "CLUBLEDGER_DB_NAME"
	EnvUseSQLite = "CLUBLEDGER_USE_SQLITE"
	EnvRedisURL  = "CLUBLEDGER_REDIS_URL"
	EnvJWTSecret = "CLUBLEDGER_JWT_SECRET"
	EnvJWTIssuer = "CLUBLEDGER_JWT_ISSUER"

	EnvLookupTimeout  = "CLUBLEDGER_LOOKUP_TIMEOUT"
	EnvLockWait       = "CLUBLEDGER_LOCK_WAIT"
	EnvVersionRetries = "CLUBLEDGER_VERSION_RETRIES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
