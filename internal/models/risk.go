package models

import (
	"fmt"
	"time"
)

// Границы хранения истории в RiskLedger
const (
	TradeHistoryLimit = 100 // последние сделки
	MarginAlertLimit  = 100 // последние алерты по марже
)

// TradeRecord представляет одну учтенную сделку в истории риск-леджера.
type TradeRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	PnL       float64   `json:"pnl"`
}

// MarginAlert представляет зафиксированное падение уровня маржи
// ниже допустимого порога.
type MarginAlert struct {
	Timestamp   time.Time `json:"timestamp"`
	MarginLevel float64   `json:"margin_level"`
	Message     string    `json:"message"`
}

// MarginCheck представляет результат последней проверки маржи.
type MarginCheck struct {
	Timestamp   time.Time `json:"timestamp"`
	MarginLevel float64   `json:"margin_level"`
}

// RiskLedger — единственный на процесс журнал риск-учета.
// Переживает рестарты (хранится в БД), обновляется атомарно.
type RiskLedger struct {
	DailyPnL          map[string]float64 `json:"daily_pnl"`            // "2006-01-02" -> сумма
	WeeklyPnL         map[string]float64 `json:"weekly_pnl"`           // "2006-W02" -> сумма
	ConsecutiveLosses int                `json:"consecutive_losses"`   // сбрасывается при pnl >= 0
	CooldownUntil     time.Time          `json:"cooldown_until"`       // zero = кулдауна нет
	TradeHistory      []TradeRecord      `json:"trade_history"`        // последние 100
	MarginAlerts      []MarginAlert      `json:"margin_alerts"`        // последние 100
	LastMarginCheck   *MarginCheck       `json:"last_margin_check,omitempty"`
}

// NewRiskLedger создает пустой леджер.
func NewRiskLedger() *RiskLedger {
	return &RiskLedger{
		DailyPnL:  make(map[string]float64),
		WeeklyPnL: make(map[string]float64),
	}
}

// DayKey возвращает ключ дневного аккумулятора для момента времени.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// WeekKey возвращает ключ недельного аккумулятора (ISO-неделя).
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Clone возвращает глубокую копию леджера.
// Используется для copy-update-swap: изменения применяются к копии
// и подменяют оригинал только после успешной записи в хранилище.
func (l *RiskLedger) Clone() *RiskLedger {
	c := &RiskLedger{
		DailyPnL:          make(map[string]float64, len(l.DailyPnL)),
		WeeklyPnL:         make(map[string]float64, len(l.WeeklyPnL)),
		ConsecutiveLosses: l.ConsecutiveLosses,
		CooldownUntil:     l.CooldownUntil,
		TradeHistory:      make([]TradeRecord, len(l.TradeHistory)),
		MarginAlerts:      make([]MarginAlert, len(l.MarginAlerts)),
	}
	for k, v := range l.DailyPnL {
		c.DailyPnL[k] = v
	}
	for k, v := range l.WeeklyPnL {
		c.WeeklyPnL[k] = v
	}
	copy(c.TradeHistory, l.TradeHistory)
	copy(c.MarginAlerts, l.MarginAlerts)
	if l.LastMarginCheck != nil {
		check := *l.LastMarginCheck
		c.LastMarginCheck = &check
	}
	return c
}

// AppendTrade добавляет сделку в историю с ограничением размера.
func (l *RiskLedger) AppendTrade(rec TradeRecord) {
	l.TradeHistory = append(l.TradeHistory, rec)
	if len(l.TradeHistory) > TradeHistoryLimit {
		l.TradeHistory = l.TradeHistory[len(l.TradeHistory)-TradeHistoryLimit:]
	}
}

// AppendMarginAlert добавляет алерт по марже с ограничением размера.
func (l *RiskLedger) AppendMarginAlert(alert MarginAlert) {
	l.MarginAlerts = append(l.MarginAlerts, alert)
	if len(l.MarginAlerts) > MarginAlertLimit {
		l.MarginAlerts = l.MarginAlerts[len(l.MarginAlerts)-MarginAlertLimit:]
	}
}

// PruneDaily удаляет дневные записи старше maxAge относительно now.
func (l *RiskLedger) PruneDaily(now time.Time, maxAge time.Duration) int {
	removed := 0
	cutoff := now.Add(-maxAge)
	for key := range l.DailyPnL {
		day, err := time.Parse("2006-01-02", key)
		if err != nil || day.Before(cutoff) {
			delete(l.DailyPnL, key)
			removed++
		}
	}
	return removed
}

// PruneWeekly оставляет не более keepWeeks последних недельных записей.
func (l *RiskLedger) PruneWeekly(now time.Time, keepWeeks int) int {
	removed := 0
	for key := range l.WeeklyPnL {
		recent := false
		for i := 0; i < keepWeeks; i++ {
			if key == WeekKey(now.AddDate(0, 0, -7*i)) {
				recent = true
				break
			}
		}
		if !recent {
			delete(l.WeeklyPnL, key)
			removed++
		}
	}
	return removed
}
