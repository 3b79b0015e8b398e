package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "SFC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:streetfood.db?cache=shared&_foreign_keys=on"
)

const (
	EnvAppEnv                 = "SFC_APP_ENV"
	EnvPort                   = "SFC_APP_PORT"
	EnvLogLevel               = "SFC_LOG_LEVEL"
	EnvDBDSN                  = "SFC_DB_DSN"
	EnvDBDriver               = "SFC_DB_DRIVER"
	EnvDBHost                 = "SFC_DB_HOST"
	EnvDBUser                 = "SFC_DB_USER"
	EnvDBName                 = "SFC_DB_NAME"
	EnvDBPassword             = "SFC_DB_PASSWORD"
	EnvRedisURL               = "SFC_REDIS_URL"
	EnvJWTSecret              = "SFC_JWT_SECRET"
	EnvJWTIssuer              = "SFC_JWT_ISSUER"
	EnvJWTExpMins             = "SFC_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "SFC_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite              = "SFC_USE_SQLITE"
	EnvGCPProjectID           = "SFC_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "SFC_PUBSUB_ORDERS_TOPIC"
	EnvPubSubReviewsTopic     = "SFC_PUBSUB_REVIEWS_TOPIC"
	EnvAnalyticsTopN          = "SFC_ANALYTICS_TOP_N"
	EnvRealtimeOrigins        = "SFC_REALTIME_ALLOWED_ORIGINS"
)
