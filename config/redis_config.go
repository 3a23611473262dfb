package config

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis event bus.
type RedisConfig struct {
	Addr          string        `env:"COMMANDBUS_REDIS_ADDR" envDefault:"localhost:6379"`
	Username      string        `env:"COMMANDBUS_REDIS_USERNAME"`
	Password      string        `env:"COMMANDBUS_REDIS_PASSWORD"`
	DB            int           `env:"COMMANDBUS_REDIS_DB" envDefault:"0"`
	ChannelPrefix string        `env:"COMMANDBUS_REDIS_CHANNEL_PREFIX" envDefault:"events"`
	DialTimeout   time.Duration `env:"COMMANDBUS_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	WriteTimeout  time.Duration `env:"COMMANDBUS_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// LoadRedisConfig parses RedisConfig from the environment.
func LoadRedisConfig() (RedisConfig, error) {
	var cfg RedisConfig
	if err := ParseEnv(&cfg); err != nil {
		return RedisConfig{}, err
	}

	return cfg, nil
}

// ClientOptions creates redis.Options for redis.NewClient.
func (c RedisConfig) ClientOptions() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  c.DialTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}
