package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MySQLDSN       string `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/shoutout?parseTime=true&multiStatements=true"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://db/migrations"`

	ProcessorBaseURL string        `env:"PROCESSOR_BASE_URL,required"`
	ProcessorAPIKey  string        `env:"PROCESSOR_API_KEY,required"`
	ProcessorTimeout time.Duration `env:"PROCESSOR_TIMEOUT" envDefault:"15s"`

	CheckoutWatchdog time.Duration `env:"CHECKOUT_WATCHDOG" envDefault:"8s"`
	VerifyTimeout    time.Duration `env:"VERIFY_TIMEOUT" envDefault:"3s"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASSWORD"`
	MailFrom string `env:"MAIL_FROM"`

	SMSGatewayURL   string        `env:"SMS_GATEWAY_URL"`
	SMSGatewayToken string        `env:"SMS_GATEWAY_TOKEN"`
	SMSTimeout      time.Duration `env:"SMS_TIMEOUT" envDefault:"10s"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config from env: %w", err)
	}
	return cfg, nil
}
