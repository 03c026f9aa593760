package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Cart         CartConfig
	Kit          KitConfig
	FeatureFlags FeatureFlagsConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAKESHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"BAKESHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BAKESHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAKESHOP_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"BAKESHOP_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BAKESHOP_DB_DSN"`
	Driver string `envconfig:"BAKESHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BAKESHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"BAKESHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BAKESHOP_DB_USER"`
	LegacyPassword string `envconfig:"BAKESHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"BAKESHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"BAKESHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAKESHOP_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"BAKESHOP_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"BAKESHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAKESHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the catalog runs on the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"BAKESHOP_REDIS_URL"`
	Address      string        `envconfig:"BAKESHOP_REDIS_ADDR"`
	Password     string        `envconfig:"BAKESHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAKESHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAKESHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAKESHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAKESHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAKESHOP_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"BAKESHOP_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Configured reports whether a redis endpoint was provided. Without one carts
// are kept in process memory.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// CartConfig controls how cart snapshots are persisted.
type CartConfig struct {
	SnapshotTTL  time.Duration `envconfig:"BAKESHOP_CART_SNAPSHOT_TTL" default:"720h"`
	KeyNamespace string        `envconfig:"BAKESHOP_CART_KEY_NAMESPACE" default:"bk"`
}

// KitConfig bounds the in-memory kit sessions. Idle sessions past SessionTTL
// are evicted; MaxSessions caps how many may be open at once.
type KitConfig struct {
	MaxItems    int           `envconfig:"BAKESHOP_KIT_MAX_ITEMS" default:"12"`
	MaxSessions int           `envconfig:"BAKESHOP_KIT_MAX_SESSIONS" default:"10000"`
	SessionTTL  time.Duration `envconfig:"BAKESHOP_KIT_SESSION_TTL" default:"2h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BAKESHOP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BAKESHOP_AUTO_MIGRATE" default:"false"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"BAKESHOP_METRICS_ENABLED" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
