package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress  string        `mapstructure:"SERVER_ADDRESS"`
	StoreDriver    string        `mapstructure:"STORE_DRIVER"`
	PostgresConn   string        `mapstructure:"POSTGRES_CONN"`
	PostgresUser   string        `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass   string        `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost   string        `mapstructure:"POSTGRES_HOST"`
	PostgresPort   string        `mapstructure:"POSTGRES_PORT"`
	PostgresDB     string        `mapstructure:"POSTGRES_DATABASE"`
	MigrationURL   string        `mapstructure:"MIGRATION_URL"`
	AMQPURL        string        `mapstructure:"AMQP_URL"`
	FeedExchange   string        `mapstructure:"FEED_EXCHANGE"`
	InstanceID     string        `mapstructure:"INSTANCE_ID"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	PolicyPath     string        `mapstructure:"POLICY_PATH"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	SweepInterval  time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SeedPath       string        `mapstructure:"SEED_PATH"`
}

// LoadConfig загружает конфигурацию из файла app.env; переменные окружения имеют приоритет
func LoadConfig(path string) (cfg Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("MIGRATION_URL", "file://migrations")
	v.SetDefault("FEED_EXCHANGE", "licitacao_events")
	v.SetDefault("POLICY_PATH", "policy.yaml")
	v.SetDefault("REQUEST_TIMEOUT", 5*time.Second)
	v.SetDefault("SWEEP_INTERVAL", 5*time.Second)
	for _, key := range []string{
		"SERVER_ADDRESS", "STORE_DRIVER", "POSTGRES_CONN", "POSTGRES_USERNAME", "POSTGRES_PASSWORD",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DATABASE", "MIGRATION_URL", "AMQP_URL",
		"FEED_EXCHANGE", "INSTANCE_ID", "JWT_SECRET", "POLICY_PATH", "REQUEST_TIMEOUT", "SWEEP_INTERVAL",
		"SEED_PATH",
	} {
		if err = v.BindEnv(key); err != nil {
			return
		}
	}

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
	}
	if err = v.Unmarshal(&cfg); err != nil {
		return
	}
	if cfg.RequestTimeout <= 0 || cfg.SweepInterval <= 0 {
		err = fmt.Errorf("REQUEST_TIMEOUT and SWEEP_INTERVAL must be positive")
	}
	return
}

// PostgresDSN возвращает строку подключения: POSTGRES_CONN или собранную из отдельных параметров
func (c Config) PostgresDSN() (string, error) {
	if c.PostgresConn != "" {
		return c.PostgresConn, nil
	}
	if c.PostgresUser == "" || c.PostgresPass == "" || c.PostgresHost == "" || c.PostgresPort == "" || c.PostgresDB == "" {
		return "", fmt.Errorf("one or more database connection environment variables are missing")
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB), nil
}
