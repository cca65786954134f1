package config

import "time"

type SessionConfig interface {
	GetExpiryBuffer() time.Duration
	GetSilentCheckTimeout() time.Duration
	GetCompletionTimeout() time.Duration
	GetCallbackTimeout() time.Duration
	GetManualExchange() bool
}

type Session struct {
	ExpiryBuffer       time.Duration `env:"TOKEN_EXPIRY_BUFFER" envDefault:"300s"`
	SilentCheckTimeout time.Duration `env:"SILENT_CHECK_TIMEOUT" envDefault:"10s"`
	CompletionTimeout  time.Duration `env:"LOGIN_COMPLETION_TIMEOUT" envDefault:"3s"`
	CallbackTimeout    time.Duration `env:"CALLBACK_TIMEOUT" envDefault:"5m"`
	ManualExchange     bool          `env:"MANUAL_EXCHANGE" envDefault:"false"`
}

var _ SessionConfig = Session{}

// GetExpiryBuffer is how long before hard expiry a token is treated as expired.
func (s Session) GetExpiryBuffer() time.Duration {
	return s.ExpiryBuffer
}

func (s Session) GetSilentCheckTimeout() time.Duration {
	return s.SilentCheckTimeout
}

func (s Session) GetCompletionTimeout() time.Duration {
	return s.CompletionTimeout
}

func (s Session) GetCallbackTimeout() time.Duration {
	return s.CallbackTimeout
}

func (s Session) GetManualExchange() bool {
	return s.ManualExchange
}
