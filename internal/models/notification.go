package models

import "time"

// Notification представляет уведомление о событии жизненного цикла позиции
// или риск-контроля. Доставляется в дашборд (WebSocket) и внешние каналы
// (Telegram) по принципу fire-and-forget.
type Notification struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`             // POSITION_OPENED, TARGETS_HIT, ...
	Severity  string                 `json:"severity"`         // info, warn, error
	Symbol    string                 `json:"symbol,omitempty"`
	Message   string                 `json:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty"` // дополнительные данные
}

// Типы уведомлений
const (
	NotificationTypePositionOpened  = "POSITION_OPENED"  // позиция открыта и взята на сопровождение
	NotificationTypeTargetsHit      = "TARGETS_HIT"      // достигнуты цели (take profit)
	NotificationTypeBreakeven       = "BREAKEVEN"        // стоп перенесен в безубыток
	NotificationTypePositionRemoved = "POSITION_REMOVED" // позиция снята с сопровождения
	NotificationTypeStopLossHit     = "STOP_LOSS_HIT"    // сработал стоп-лосс
	NotificationTypeTradeBlocked    = "TRADE_BLOCKED"    // риск-гейт отклонил сделку
	NotificationTypeMarginAlert     = "MARGIN_ALERT"     // уровень маржи ниже порога
	NotificationTypeError           = "ERROR"            // ошибка исполнения/биржи
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// NewNotification создает уведомление с текущим временем.
func NewNotification(ntype, severity, symbol, message string) *Notification {
	return &Notification{
		Timestamp: time.Now(),
		Type:      ntype,
		Severity:  severity,
		Symbol:    symbol,
		Message:   message,
	}
}
