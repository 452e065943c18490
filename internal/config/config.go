package config

type Config interface {
	EnvConfig
	ServiceConfig
	StoreConfig
	FederatedConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Service
	Store
	Federated
}

func New() Config {
	return mainConfig{}
}
