package models

import "time"

// PositionSummary — представление позиции для дашборда.
type PositionSummary struct {
	Symbol               string    `json:"symbol"`
	Side                 string    `json:"side"`
	EntryPrice           float64   `json:"entry_price"`
	Quantity             float64   `json:"quantity"`
	TargetsTotal         int       `json:"targets_total"`
	TargetsFilled        int       `json:"targets_filled"`
	StopLossPrice        float64   `json:"stop_loss_price,omitempty"`
	StopMovedToBreakeven bool      `json:"stop_moved_to_breakeven"`
	LastObservedPrice    float64   `json:"last_observed_price"`
	CreatedAt            time.Time `json:"created_at"`
}

// PositionsSummary — сводка по всем отслеживаемым позициям.
type PositionsSummary struct {
	MonitoringActive bool              `json:"monitoring_active"`
	Count            int               `json:"count"`
	Positions        []PositionSummary `json:"positions"`
}

// RiskStats — сводка риск-леджера для дашборда.
type RiskStats struct {
	DailyPnL          float64       `json:"daily_pnl"`           // за сегодня
	WeeklyPnL         float64       `json:"weekly_pnl"`          // за текущую ISO-неделю
	DailyLimit        float64       `json:"daily_limit"`
	WeeklyLimit       float64       `json:"weekly_limit"`
	ConsecutiveLosses int           `json:"consecutive_losses"`
	MaxConsecutive    int           `json:"max_consecutive_losses"`
	CooldownActive    bool          `json:"cooldown_active"`
	CooldownRemaining string        `json:"cooldown_remaining,omitempty"` // человекочитаемо
	LastMarginCheck   *MarginCheck  `json:"last_margin_check,omitempty"`
	RecentTrades      []TradeRecord `json:"recent_trades"`
	RecentAlerts      []MarginAlert `json:"recent_alerts"`
}
