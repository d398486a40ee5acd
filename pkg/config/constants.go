package config

// EnvPrefix is passed to envconfig; every field carries its full name in the tag.
const EnvPrefix = "CREDITS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverSQLite = "sqlite"
)

// Legacy connection parts, used only when CREDITS_DB_DSN is empty.
const (
	EnvDBDSN  = "CREDITS_DB_DSN"
	EnvDBHost = "CREDITS_DB_HOST"
	EnvDBUser = "CREDITS_DB_USER"
	EnvDBName = "CREDITS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
