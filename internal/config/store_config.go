package config

type StoreConfig interface {
	GetStoreDriver() string
	GetStorePath() string
	GetStoreKey() string
	GetKeyringService() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

const (
	StoreDriverMemory  = "memory"
	StoreDriverFile    = "file"
	StoreDriverKeyring = "keyring"
	StoreDriverSQLite  = "sqlite"
	StoreDriverRedis   = "redis"
)

// Store selects the durable key-value backend for tokens and pending logins.
type Store struct {
	Driver         string `env:"STORE_DRIVER" envDefault:"file"`
	Path           string `env:"STORE_PATH" envDefault:"./data/customer-auth.json"`
	Key            string `env:"STORE_KEY"`
	KeyringService string `env:"STORE_KEYRING_SERVICE" envDefault:"com.customer-auth"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix    string `env:"REDIS_PREFIX" envDefault:"customer-auth:"`
}

var _ StoreConfig = Store{}

func (s Store) GetStoreDriver() string {
	return s.Driver
}

func (s Store) GetStorePath() string {
	return s.Path
}

// GetStoreKey returns the passphrase used to encrypt the file store. Empty
// means plaintext.
func (s Store) GetStoreKey() string {
	return s.Key
}

func (s Store) GetKeyringService() string {
	return s.KeyringService
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetRedisPrefix() string {
	return s.RedisPrefix
}
