package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Exchange ExchangeConfig
	Trading  TradingConfig
	Risk     RiskConfig
	Tracker  TrackerConfig
	Telegram TelegramConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД.
// В demo-режиме БД не обязательна: леджер живет в памяти.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// ExchangeConfig - настройки шлюза биржи
type ExchangeConfig struct {
	Name        string // bybit, demo
	APIKey      string
	SecretKey   string
	Testnet     bool
	DemoSeed    int64
	DemoBalance float64
}

// TradingConfig - параметры сайзинга и исполнения
type TradingConfig struct {
	PositionMode    string  // oneway, hedge
	RiskPercentage  float64 // процент доступного баланса на сделку
	FixedAmount     float64 // фиксированная маржа (0 = процентный сайзинг)
	Leverage        int
	MaxPositionSize float64 // максимальная стоимость позиции в USDT
	BreakevenTarget int     // цель, после которой стоп уходит в безубыток
}

// RiskConfig - лимиты риск-гейта
type RiskConfig struct {
	DailyLossLimit       float64
	WeeklyLossLimit      float64
	MaxConsecutiveLosses int
	MinMarginLevel       float64
	Cooldown             time.Duration
}

// TrackerConfig - параметры цикла сопровождения позиций
type TrackerConfig struct {
	PollInterval time.Duration
	SetupDelay   time.Duration
	CallTimeout  time.Duration
	ErrorBackoff time.Duration
}

// TelegramConfig - настройки доставки уведомлений в Telegram
type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  int64
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "tradebot"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Exchange: ExchangeConfig{
			Name:        getEnv("EXCHANGE", "demo"),
			APIKey:      getEnv("EXCHANGE_API_KEY", ""),
			SecretKey:   getEnv("EXCHANGE_API_SECRET", ""),
			Testnet:     getEnvAsBool("EXCHANGE_TESTNET", false),
			DemoSeed:    int64(getEnvAsInt("DEMO_SEED", 0)),
			DemoBalance: getEnvAsFloat("DEMO_BALANCE", 10000),
		},
		Trading: TradingConfig{
			PositionMode:    getEnv("POSITION_MODE", "oneway"),
			RiskPercentage:  getEnvAsFloat("RISK_PERCENTAGE", 2.0),
			FixedAmount:     getEnvAsFloat("FIXED_AMOUNT", 0),
			Leverage:        getEnvAsInt("LEVERAGE", 10),
			MaxPositionSize: getEnvAsFloat("MAX_POSITION_SIZE", 10000),
			BreakevenTarget: getEnvAsInt("BREAKEVEN_TARGET", 1),
		},
		Risk: RiskConfig{
			DailyLossLimit:       getEnvAsFloat("DAILY_LOSS_LIMIT", 500),
			WeeklyLossLimit:      getEnvAsFloat("WEEKLY_LOSS_LIMIT", 2000),
			MaxConsecutiveLosses: getEnvAsInt("MAX_CONSECUTIVE_LOSSES", 3),
			MinMarginLevel:       getEnvAsFloat("MIN_MARGIN_LEVEL", 3.0),
			Cooldown:             getEnvAsDuration("RISK_COOLDOWN", 1*time.Hour),
		},
		Tracker: TrackerConfig{
			PollInterval: getEnvAsDuration("POLL_INTERVAL", 15*time.Second),
			SetupDelay:   getEnvAsDuration("SETUP_DELAY", 2*time.Second),
			CallTimeout:  getEnvAsDuration("CALL_TIMEOUT", 10*time.Second),
			ErrorBackoff: getEnvAsDuration("ERROR_BACKOFF", 60*time.Second),
		},
		Telegram: TelegramConfig{
			Enabled: getEnvAsBool("TELEGRAM_ENABLED", false),
			Token:   getEnv("TELEGRAM_TOKEN", ""),
			ChatID:  getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Exchange.Name != "demo" {
		if c.Exchange.APIKey == "" || c.Exchange.SecretKey == "" {
			return fmt.Errorf("EXCHANGE_API_KEY and EXCHANGE_API_SECRET are required for %s", c.Exchange.Name)
		}
	}

	if c.Trading.PositionMode != "oneway" && c.Trading.PositionMode != "hedge" {
		return fmt.Errorf("POSITION_MODE must be oneway or hedge, got %q", c.Trading.PositionMode)
	}

	if c.Trading.RiskPercentage <= 0 || c.Trading.RiskPercentage > 100 {
		return fmt.Errorf("RISK_PERCENTAGE must be in (0, 100], got %v", c.Trading.RiskPercentage)
	}

	if c.Trading.FixedAmount < 0 {
		return fmt.Errorf("FIXED_AMOUNT cannot be negative, got %v", c.Trading.FixedAmount)
	}

	if c.Trading.Leverage < 1 || c.Trading.Leverage > 100 {
		return fmt.Errorf("LEVERAGE must be between 1 and 100, got %d", c.Trading.Leverage)
	}

	if c.Trading.MaxPositionSize <= 0 {
		return fmt.Errorf("MAX_POSITION_SIZE must be positive, got %v", c.Trading.MaxPositionSize)
	}

	if c.Trading.BreakevenTarget < 1 {
		return fmt.Errorf("BREAKEVEN_TARGET must be at least 1, got %d", c.Trading.BreakevenTarget)
	}

	if c.Risk.DailyLossLimit <= 0 {
		return fmt.Errorf("DAILY_LOSS_LIMIT must be positive, got %v", c.Risk.DailyLossLimit)
	}

	if c.Risk.WeeklyLossLimit < c.Risk.DailyLossLimit {
		return fmt.Errorf("WEEKLY_LOSS_LIMIT (%v) cannot be lower than DAILY_LOSS_LIMIT (%v)",
			c.Risk.WeeklyLossLimit, c.Risk.DailyLossLimit)
	}

	if c.Risk.MaxConsecutiveLosses < 1 {
		return fmt.Errorf("MAX_CONSECUTIVE_LOSSES must be at least 1, got %d", c.Risk.MaxConsecutiveLosses)
	}

	if c.Risk.MinMarginLevel <= 0 {
		return fmt.Errorf("MIN_MARGIN_LEVEL must be positive, got %v", c.Risk.MinMarginLevel)
	}

	if c.Tracker.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %v", c.Tracker.PollInterval)
	}

	if c.Tracker.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT must be positive, got %v", c.Tracker.CallTimeout)
	}

	if c.Telegram.Enabled {
		if c.Telegram.Token == "" {
			return fmt.Errorf("TELEGRAM_TOKEN is required when TELEGRAM_ENABLED=true")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_ENABLED=true")
		}
	}

	return nil
}

// IsDemo сообщает, работает ли бот без реальной биржи
func (c *Config) IsDemo() bool {
	return c.Exchange.Name == "demo"
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
