package config

const (
	EnvPrefix = "BAKESHOP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:bakeshop.db?cache=shared"
)

const (
	EnvAppEnv   = "BAKESHOP_APP_ENV"
	EnvPort     = "BAKESHOP_APP_PORT"
	EnvLogLevel = "BAKESHOP_LOG_LEVEL"

	EnvDBDSN    = "BAKESHOP_DB_DSN"
	EnvDBDriver = "BAKESHOP_DB_DRIVER"
	EnvDBHost   = "BAKESHOP_DB_HOST"
	EnvDBUser   = "BAKESHOP_DB_USER"
	EnvDBName   = "BAKESHOP_DB_NAME"

	EnvRedisURL = "BAKESHOP_REDIS_URL"

	EnvCartSnapshotTTL = "BAKESHOP_CART_SNAPSHOT_TTL"
	EnvKitMaxItems     = "BAKESHOP_KIT_MAX_ITEMS"
	EnvKitMaxSessions  = "BAKESHOP_KIT_MAX_SESSIONS"
	EnvKitSessionTTL   = "BAKESHOP_KIT_SESSION_TTL"
	EnvUseSQLite       = "BAKESHOP_USE_SQLITE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
