package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "bookhive"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BOOKHIVE_DB_DSN"
	EnvDBHost = "BOOKHIVE_DB_HOST"
	EnvDBUser = "BOOKHIVE_DB_USER"
	EnvDBName = "BOOKHIVE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Cron         CronConfig
	Plans        PlansConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"BOOKHIVE_APP_ENV" required:"true"`
	Port         string `envconfig:"BOOKHIVE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BOOKHIVE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOOKHIVE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BOOKHIVE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BOOKHIVE_DB_DSN"`
	Driver string `envconfig:"BOOKHIVE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BOOKHIVE_DB_HOST"`
	LegacyPort     int    `envconfig:"BOOKHIVE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOOKHIVE_DB_USER"`
	LegacyPassword string `envconfig:"BOOKHIVE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOOKHIVE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOOKHIVE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOOKHIVE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOOKHIVE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOOKHIVE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOKHIVE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOKHIVE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BOOKHIVE_REDIS_ADDR"`
	Password     string        `envconfig:"BOOKHIVE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOKHIVE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOKHIVE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOOKHIVE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOOKHIVE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOKHIVE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOOKHIVE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CronConfig drives the sweep worker cadence. The expiry sweep runs every
// cycle; the monthly reset only acts on the first day of the month but is
// safe to trigger on every cycle.
type CronConfig struct {
	Interval time.Duration `envconfig:"BOOKHIVE_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"BOOKHIVE_CRON_LOCK_TTL" default:"25h"`
	Timezone string        `envconfig:"BOOKHIVE_CRON_TIMEZONE" default:"UTC"`
}

// PlansConfig allows deployments to override the static plan-limit table
// without a rebuild. Sentinel -1 means unlimited.
type PlansConfig struct {
	FreeMaxServices       int `envconfig:"BOOKHIVE_PLAN_FREE_MAX_SERVICES" default:"1"`
	FreeMaxCategories     int `envconfig:"BOOKHIVE_PLAN_FREE_MAX_CATEGORIES" default:"1"`
	FreeMaxBookingsMonth  int `envconfig:"BOOKHIVE_PLAN_FREE_MAX_BOOKINGS_MONTH" default:"5"`
	BasicMaxServices      int `envconfig:"BOOKHIVE_PLAN_BASIC_MAX_SERVICES" default:"5"`
	BasicMaxCategories    int `envconfig:"BOOKHIVE_PLAN_BASIC_MAX_CATEGORIES" default:"3"`
	BasicMaxBookingsMonth int `envconfig:"BOOKHIVE_PLAN_BASIC_MAX_BOOKINGS_MONTH" default:"-1"`
	ProMaxServices        int `envconfig:"BOOKHIVE_PLAN_PRO_MAX_SERVICES" default:"-1"`
	ProMaxCategories      int `envconfig:"BOOKHIVE_PLAN_PRO_MAX_CATEGORIES" default:"-1"`
	ProMaxBookingsMonth   int `envconfig:"BOOKHIVE_PLAN_PRO_MAX_BOOKINGS_MONTH" default:"-1"`

	// ResetTiers lists the tiers whose monthly booking counter is reset by
	// the monthly sweep. Only the free tier by default.
	ResetTiers []string `envconfig:"BOOKHIVE_PLAN_RESET_TIERS" default:"free"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BOOKHIVE_AUTO_MIGRATE" default:"false"`
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
