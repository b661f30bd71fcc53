package config

const EnvPrefix = "SPARK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMongo    = "mongo"
)

const DefaultSessionCookie = "spark_session"

const (
	EnvAppEnv            = "SPARK_APP_ENV"
	EnvPort              = "SPARK_APP_PORT"
	EnvStoreDriver       = "SPARK_STORE_DRIVER"
	EnvDBDSN             = "SPARK_DB_DSN"
	EnvMongoURI          = "SPARK_MONGO_URI"
	EnvRedisURL          = "SPARK_REDIS_URL"
	EnvSessionSecret     = "SPARK_SESSION_SECRET"
	EnvSessionIssuer     = "SPARK_SESSION_ISSUER"
	EnvOAuthClientID     = "SPARK_OAUTH_CLIENT_ID"
	EnvOAuthClientSecret = "SPARK_OAUTH_CLIENT_SECRET"
	EnvOAuthRedirectURI  = "SPARK_OAUTH_REDIRECT_URI"
	EnvBillingSecret     = "SPARK_BILLING_WEBHOOK_SECRET"
	EnvBillingMonthlyIDs = "SPARK_BILLING_MONTHLY_PRODUCT_IDS"
	EnvBillingAnnualIDs  = "SPARK_BILLING_ANNUAL_PRODUCT_IDS"
)
