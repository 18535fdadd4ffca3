package config

import "time"

type AppConfig struct {
	Server      ServerConfig      `envPrefix:"SERVER_"`
	Database    DatabaseConfig    `envPrefix:"DB_"`
	Redis       RedisConfig       `envPrefix:"REDIS_"`
	Reset       ResetConfig       `envPrefix:"RESET_"`
	Maintenance MaintenanceConfig `envPrefix:"MAINTENANCE_"`
	Log         LogConfig         `envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"3000"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"3306"`
	User     string `env:"USER" envDefault:"root"`
	Password string `env:"PASSWORD" envDefault:"password"`
	Name     string `env:"NAME" envDefault:"app_db"`

	MaxOpenConns int `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int `env:"MAX_IDLE_CONNS" envDefault:"5"`

	// ConnectTimeout bounds the retried ping performed at startup.
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"30s"`
}

// RedisConfig is optional. An empty Host disables the cross-instance reset lock.
type RedisConfig struct {
	Host     string `env:"HOST" envDefault:""`
	Port     int    `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB" envDefault:"0"`

	LockKey string        `env:"LOCK_KEY" envDefault:"schema-keeper:reset-lock"`
	LockTTL time.Duration `env:"LOCK_TTL" envDefault:"5m"`
}

type ResetConfig struct {
	// ModelsFile points at the YAML model declarations applied at startup.
	ModelsFile string `env:"MODELS_FILE" envDefault:"models.yaml"`

	OnStartup bool `env:"ON_STARTUP" envDefault:"true"`

	Timeout time.Duration `env:"TIMEOUT" envDefault:"2m"`

	Concurrency int `env:"CONCURRENCY" envDefault:"8"`
}

type MaintenanceConfig struct {
	Schedule string `env:"SCHEDULE" envDefault:"0 3 * * *"`

	AutoStart bool `env:"AUTO_START" envDefault:"false"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}
