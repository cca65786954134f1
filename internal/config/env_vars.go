package config

import "strings"

type EnvVars struct {
	AppName      string `env:"APP_NAME" envDefault:"Customer Auth"`
	Env          string `env:"ENV" envDefault:"DEV"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	CallbackAddr string `env:"CALLBACK_ADDR" envDefault:"127.0.0.1:9877"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if strings.TrimSpace(e.Env) == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Env)
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetCallbackAddr returns the listen address of the loopback callback server.
// The configured redirect URI must point at this address.
func (e EnvVars) GetCallbackAddr() string {
	return e.CallbackAddr
}
