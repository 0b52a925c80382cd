package exchange

import (
	"fmt"
	"strings"
)

// Config содержит параметры подключения к бирже
type Config struct {
	Name        string // bybit, demo
	APIKey      string
	SecretKey   string
	Testnet     bool
	DemoSeed    int64   // seed симуляции (demo)
	DemoBalance float64 // стартовый баланс симуляции (demo)
}

// SupportedGateways - список поддерживаемых режимов
var SupportedGateways = []string{
	"bybit",
	"demo",
}

// NewGateway создает шлюз биржи по конфигурации
func NewGateway(cfg Config) (Gateway, error) {
	switch strings.ToLower(cfg.Name) {
	case "bybit":
		if cfg.APIKey == "" || cfg.SecretKey == "" {
			return nil, fmt.Errorf("bybit requires api key and secret")
		}
		return NewBybit(cfg.APIKey, cfg.SecretKey, cfg.Testnet), nil
	case "demo":
		return NewDemo(cfg.DemoSeed, cfg.DemoBalance), nil
	default:
		return nil, fmt.Errorf("unsupported gateway: %s", cfg.Name)
	}
}

// IsSupported проверяет, поддерживается ли режим
func IsSupported(name string) bool {
	name = strings.ToLower(name)
	for _, g := range SupportedGateways {
		if g == name {
			return true
		}
	}
	return false
}
