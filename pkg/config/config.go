package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/utils"
)

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTP     `yaml:"http"`
	Postgres PG       `yaml:"postgres"`
	Kafka    Kafka    `yaml:"kafka"`
	Redis    Redis    `yaml:"redis"`
	Services Services `yaml:"services"`
	Jobs     Jobs     `yaml:"jobs"`
	SMTP     SMTP     `yaml:"smtp"`
	Logger   Logger   `yaml:"logger"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"4s"`
}

type PG struct {
	URL string `yaml:"url" env:"DB_URL"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
}

type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type Services struct {
	CatalogURL string `yaml:"catalog_url" env:"CATALOG_URL" env-default:"http://localhost:3001"`
	OrderURL   string `yaml:"order_url" env:"ORDER_URL" env-default:"http://localhost:3002"`
}

type Jobs struct {
	StartDelay    time.Duration `yaml:"start_delay" env:"JOBS_START_DELAY" env-default:"5s"`
	ItemStepDelay time.Duration `yaml:"item_step_delay" env:"JOBS_ITEM_STEP_DELAY" env-default:"500ms"`
	PollInterval  time.Duration `yaml:"poll_interval" env:"JOBS_POLL_INTERVAL" env-default:"1s"`
	MaxAttempts   int           `yaml:"max_attempts" env:"JOBS_MAX_ATTEMPTS" env-default:"5"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
}

type Logger struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// MustLoad reads CONFIG_PATH when it points at a file, falling back to
// environment variables only.
func MustLoad() *Config {
	var cfg Config

	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")
	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			log.Fatalf("error reading config: %v", err)
		}
		return &cfg
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("error reading config from env: %v", err)
	}

	return &cfg
}
