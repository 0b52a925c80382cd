package models

import (
	"fmt"
	"strings"
	"time"
)

// Signal представляет разобранный торговый сигнал.
// Создается парсером или API и дальше не изменяется.
type Signal struct {
	Symbol     string          `json:"symbol"`               // BTCUSDT (всегда с суффиксом USDT)
	Side       string          `json:"side"`                 // long, short
	EntryPrice float64         `json:"entry_price"`          // середина диапазона, если источник дал диапазон
	Targets    map[int]float64 `json:"targets"`              // индекс цели (1..N) -> цена
	StopLoss   float64         `json:"stop_loss,omitempty"`  // 0 = не задан
	Source     string          `json:"source,omitempty"`     // telegram, api, manual
	ReceivedAt time.Time       `json:"received_at"`
}

// Направления позиции
const (
	SideLong  = "long"  // длинная позиция (ставка на рост)
	SideShort = "short" // короткая позиция (ставка на падение)
)

// Источники сигналов
const (
	SignalSourceTelegram = "telegram"
	SignalSourceAPI      = "api"
	SignalSourceManual   = "manual"
)

// Validate проверяет обязательные поля сигнала.
// Направление целей и стопа здесь НЕ проверяется: некорректная нога
// отбрасывается при размещении ордеров, сигнал целиком не отклоняется.
func (s *Signal) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("signal symbol is required")
	}
	if !strings.HasSuffix(s.Symbol, "USDT") {
		return fmt.Errorf("symbol must end with USDT, got %s", s.Symbol)
	}
	if s.Side != SideLong && s.Side != SideShort {
		return fmt.Errorf("invalid side: %s", s.Side)
	}
	if s.EntryPrice <= 0 {
		return fmt.Errorf("entry price must be positive, got %f", s.EntryPrice)
	}
	for idx, price := range s.Targets {
		if idx < 1 {
			return fmt.Errorf("target index must be >= 1, got %d", idx)
		}
		if price <= 0 {
			return fmt.Errorf("target %d price must be positive, got %f", idx, price)
		}
	}
	if s.StopLoss < 0 {
		return fmt.Errorf("stop loss must be non-negative, got %f", s.StopLoss)
	}
	return nil
}

// TargetValidForSide проверяет, что цель лежит с правильной стороны от входа:
// для long цель выше входа, для short — ниже.
func (s *Signal) TargetValidForSide(price float64) bool {
	if s.Side == SideLong {
		return price > s.EntryPrice
	}
	return price < s.EntryPrice
}

// StopValidForSide проверяет направление стоп-лосса относительно входа.
func (s *Signal) StopValidForSide() bool {
	if s.StopLoss == 0 {
		return false
	}
	if s.Side == SideLong {
		return s.StopLoss < s.EntryPrice
	}
	return s.StopLoss > s.EntryPrice
}
