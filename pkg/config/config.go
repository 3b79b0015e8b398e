package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full process configuration, read from SFC_* variables.
type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Eventing      EventingConfig
	Outbox        OutboxConfig
	Analytics     AnalyticsConfig
	Realtime      RealtimeConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.resolveDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if access, refresh := time.Duration(cfg.JWT.ExpirationMinutes)*time.Minute, cfg.JWT.RefreshTokenTTL(); refresh <= access {
		return nil, fmt.Errorf("%s (%s) must exceed the access token lifetime (%s)", EnvRefreshTokenTTLMinutes, refresh, access)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SFC_APP_ENV" required:"true"`
	Port         string `envconfig:"SFC_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SFC_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"SFC_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"SFC_LOG_WARN_STACK" default:"false"`
	// MetricsAddr is the listen address for the worker /metrics endpoint; empty disables it.
	MetricsAddr string `envconfig:"SFC_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SFC_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SFC_DB_DSN"`
	Driver string `envconfig:"SFC_DB_DRIVER" default:"postgres"`

	// Discrete connection parts, used only when DSN is blank.
	Host     string `envconfig:"SFC_DB_HOST"`
	Port     int    `envconfig:"SFC_DB_PORT" default:"5432"`
	User     string `envconfig:"SFC_DB_USER"`
	Password string `envconfig:"SFC_DB_PASSWORD"`
	Name     string `envconfig:"SFC_DB_NAME"`
	SSLMode  string `envconfig:"SFC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SFC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SFC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SFC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SFC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn; zero disables it.
	SlowQuery time.Duration `envconfig:"SFC_DB_SLOW_QUERY" default:"500ms"`
}

// IsSQLite reports whether the configured driver targets sqlite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"SFC_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SFC_REDIS_ADDR"`
	Password     string        `envconfig:"SFC_REDIS_PASSWORD"`
	DB           int           `envconfig:"SFC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SFC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SFC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SFC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SFC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SFC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SFC_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SFC_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SFC_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"SFC_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SFC_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SFC_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SFC_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SFC_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SFC_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SFC_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SFC_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SFC_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SFC_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SFC_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SFC_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SFC_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SFC_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SFC_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SFC_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SFC_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic         string `envconfig:"SFC_PUBSUB_ORDERS_TOPIC" default:"sfc-order-events"`
	OrdersSubscription  string `envconfig:"SFC_PUBSUB_ORDERS_SUBSCRIPTION"`
	ReviewsTopic        string `envconfig:"SFC_PUBSUB_REVIEWS_TOPIC" default:"sfc-review-events"`
	ReviewsSubscription string `envconfig:"SFC_PUBSUB_REVIEWS_SUBSCRIPTION"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SFC_EVENTING_IDEMPOTENCY_TTL" default:"168h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SFC_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SFC_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SFC_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"SFC_OUTBOX_RETENTION_DAYS" default:"30"`
	// DLQRetentionDays keeps dead letters longer so they can be replayed by hand.
	DLQRetentionDays int `envconfig:"SFC_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
}

type AnalyticsConfig struct {
	TopN int `envconfig:"SFC_ANALYTICS_TOP_N" default:"3"`
	// LookupChunkSize bounds the number of ids per profile batch query.
	LookupChunkSize int `envconfig:"SFC_ANALYTICS_LOOKUP_CHUNK_SIZE" default:"200"`
}

type RealtimeConfig struct {
	AllowedOrigins []string `envconfig:"SFC_REALTIME_ALLOWED_ORIGINS"`
	SendBuffer     int      `envconfig:"SFC_REALTIME_SEND_BUFFER" default:"64"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"SFC_CRON_INTERVAL" default:"1h"`
	RatingJobEnabled    bool          `envconfig:"SFC_CRON_RATING_JOB_ENABLED" default:"true"`
	RetentionJobEnabled bool          `envconfig:"SFC_CRON_RETENTION_JOB_ENABLED" default:"true"`
}

// resolveDSN fills DSN when it was not given directly: sqlite gets its
// default file, postgres is assembled from the discrete parts.
func (db *DBConfig) resolveDSN(forceSQLite bool) error {
	if forceSQLite {
		db.Driver = DBDriverSQLite
	}
	switch {
	case db.DSN != "":
		return nil
	case db.IsSQLite():
		db.DSN = defaultSQLiteDSN
		return nil
	}

	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s is not set and neither are %s", EnvDBDSN, strings.Join(missing, ", "))
	}
	db.DSN = db.postgresURL().String()
	return nil
}

func (db DBConfig) postgresURL() *url.URL {
	u := &url.URL{
		Scheme: DBDriverPostgres,
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	return u
}
