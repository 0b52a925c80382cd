package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// ============ Валидация торговых параметров ============

var symbolRegex = regexp.MustCompile(`^[A-Z0-9]{2,20}USDT$`)

// NormalizeSymbol приводит символ к биржевому виду: верхний регистр,
// без разделителей, с суффиксом USDT.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("/", "", "-", "", "_", "", " ", "").Replace(s)
	if s == "" {
		return s
	}
	if !strings.HasSuffix(s, "USDT") {
		s += "USDT"
	}
	return s
}

// ValidateSymbol проверяет, что символ — корректная USDT-пара.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is empty")
	}
	if !symbolRegex.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// ValidateLeverage проверяет, что плечо в допустимом диапазоне биржи.
func ValidateLeverage(leverage int) error {
	if leverage < 1 || leverage > 100 {
		return fmt.Errorf("leverage must be between 1 and 100, got %d", leverage)
	}
	return nil
}

// ValidatePercentage проверяет процентное значение (0, 100].
func ValidatePercentage(name string, value float64) error {
	if value <= 0 || value > 100 {
		return fmt.Errorf("%s must be in (0, 100], got %.2f", name, value)
	}
	return nil
}

// ValidatePositive проверяет, что значение строго положительное.
func ValidatePositive(name string, value float64) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive, got %.2f", name, value)
	}
	return nil
}
