// Package config предоставляет структуры и функции для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	HTTPServer              `yaml:"http_server"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	JWTToken                `yaml:"jwttoken"`
	Quota                   `yaml:"quota"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"5"`
	RateBurst   int           `yaml:"rate_burst" env-default:"10"`
	RateIdleTTL time.Duration `yaml:"rate_idle_ttl" env-default:"10m"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ структура для настройки публикации событий
type RabbitMQ struct {
	RabbitMQURL string        `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	Exchange    string        `yaml:"exchange" env-default:"quota"`
	Retries     int           `yaml:"retries" env-default:"5"`
	RetryDelay  time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Quota настройки движка квот
type Quota struct {
	StoreTimeout time.Duration `yaml:"store_timeout" env-default:"3s"`
	UserLock     bool          `yaml:"user_lock"`
	LockTTL      time.Duration `yaml:"lock_ttl" env-default:"5s"`

	// SweepInterval период фонового перевода просроченных подписок в expired,
	// отрицательное значение выключает фоновый проход.
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1h"`
	SweepBatch    int           `yaml:"sweep_batch" env-default:"100"`
}

// Load читает конфиг из файла path и переменных окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if path == "" {
		return nil, fmt.Errorf("%s: %w", op, errors.New("config path is empty"))
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.StorageConnectionString == "" {
		return nil, fmt.Errorf("%s: storage_connection_string is required", op)
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("%s: jwt_secret_key is required", op)
	}
	// операция под блокировкой отменяется раньше, чем истекает lock_ttl,
	// поэтому хотя бы одно обращение к хранилищу должно в него укладываться
	if cfg.UserLock && cfg.LockTTL <= cfg.StoreTimeout {
		return nil, fmt.Errorf("%s: lock_ttl %s must exceed store_timeout %s", op, cfg.LockTTL, cfg.StoreTimeout)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// String печатает конфиг без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"MigrationsPath: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"  RateLimit: %g/%d\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"RabbitMQ:\n"+
			"  Exchange: %s\n"+
			"Quota:\n"+
			"  StoreTimeout: %s\n"+
			"  UserLock: %t\n"+
			"  LockTTL: %s\n"+
			"  Sweep: %s/%d\n",
		c.Env,
		c.MigrationsPath,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.RateLimit,
		c.RateBurst,
		c.AddressRedis,
		c.DB,
		c.Exchange,
		c.StoreTimeout,
		c.UserLock,
		c.LockTTL,
		c.SweepInterval,
		c.SweepBatch,
	)
}
