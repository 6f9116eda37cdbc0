package config

// EnvPrefix namespaces every environment variable consumed by the service.
const EnvPrefix = "GREIA"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "GREIA_APP_ENV"
	EnvDBDSN  = "GREIA_DB_DSN"
	EnvDBHost = "GREIA_DB_HOST"
	EnvDBUser = "GREIA_DB_USER"
	EnvDBName = "GREIA_DB_NAME"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
