package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "GIGBROKER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "GIGBROKER_DB_DSN"
	EnvDBHost = "GIGBROKER_DB_HOST"
	EnvDBUser = "GIGBROKER_DB_USER"
	EnvDBName = "GIGBROKER_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
