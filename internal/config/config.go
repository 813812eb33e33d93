package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Host     string `mapstructure:"DB_HOST"`
	User     string `mapstructure:"DB_USER"`
	Password string `mapstructure:"DB_PASSWORD"`
	Name     string `mapstructure:"DB_NAME"`
	DBPort   string `mapstructure:"DB_PORT"`

	ServerPort string `mapstructure:"SERVER_PORT"`

	RedisAddr string `mapstructure:"REDIS_ADDR"`

	S3Endpoint        string `mapstructure:"S3_ENDPOINT"`
	S3Region          string `mapstructure:"S3_REGION"`
	S3Bucket          string `mapstructure:"S3_BUCKET"`
	S3AccessKeyID     string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretAccessKey string `mapstructure:"S3_SECRET_KEY"`

	// UploadDir is where the resumable-upload daemon writes incoming chunks;
	// OrganizedDir is the root of the canonical CLIENT/PROJECT tree for
	// locally stored files.
	UploadDir    string `mapstructure:"UPLOAD_DIR"`
	OrganizedDir string `mapstructure:"ORGANIZED_DIR"`

	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `mapstructure:"TELEGRAM_CHAT_ID"`

	AdminUsername     string `mapstructure:"ADMIN_USERNAME"`
	AdminPasswordHash string `mapstructure:"ADMIN_PASSWORD_HASH"`

	// ReconcileDelaySeconds is how long a completed s3 upload settles before
	// reconciliation reads the object back.
	ReconcileDelaySeconds int `mapstructure:"RECONCILE_DELAY_SECONDS"`
	// LedgerMaxAgeHours bounds how long completed uploads stay in memory.
	LedgerMaxAgeHours int `mapstructure:"LEDGER_MAX_AGE_HOURS"`
}

func Load() (*Config, error) {
	viper.AddConfigPath("./")
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("S3_BUCKET", "uploads")
	viper.SetDefault("UPLOAD_DIR", "./data/uploads")
	viper.SetDefault("ORGANIZED_DIR", "./data/organized")
	viper.SetDefault("RECONCILE_DELAY_SECONDS", 5)
	viper.SetDefault("LEDGER_MAX_AGE_HOURS", 24)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.User == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}

	if cfg.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Name == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}

	if cfg.DBPort == "" {
		return nil, fmt.Errorf("DB_PORT is required")
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}

	if cfg.ServerPort == "" {
		return nil, fmt.Errorf("SERVER_PORT is required")
	}

	return &cfg, nil
}

// DSN assembles the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.User, c.Password, c.Name, c.DBPort)
}

// ReconcileDelay returns the settle window as a duration.
func (c *Config) ReconcileDelay() time.Duration {
	return time.Duration(c.ReconcileDelaySeconds) * time.Second
}

// LedgerMaxAge returns the completed-record retention window.
func (c *Config) LedgerMaxAge() time.Duration {
	return time.Duration(c.LedgerMaxAgeHours) * time.Hour
}
