package websocket

import (
	"time"

	"tradebot/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeNotification - событие жизненного цикла позиции или риск-контроля
	// Отправляется при событиях: открытие, цели, безубыток, стоп-лосс, блокировка
	MessageTypeNotification MessageType = "notification"

	// MessageTypePositionsUpdate - сводка отслеживаемых позиций
	// Отправляется после каждого изменения состояния позиций
	MessageTypePositionsUpdate MessageType = "positionsUpdate"

	// MessageTypeRiskUpdate - состояние риск-леджера
	// Отправляется после записи результата сделки
	MessageTypeRiskUpdate MessageType = "riskUpdate"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// NotificationMessage - сообщение о событии бота
//
// Содержит информацию о событии:
// - Тип события (POSITION_OPENED, TARGETS_HIT, STOP_LOSS_HIT, и т.д.)
// - Уровень важности (info, warn, error)
// - Символ и текст сообщения
type NotificationMessage struct {
	BaseMessage
	Data *models.Notification `json:"data"`
}

// PositionsUpdateMessage - сообщение со сводкой позиций
//
// Позволяет дашборду отображать актуальное состояние сопровождения
// без необходимости polling
type PositionsUpdateMessage struct {
	BaseMessage
	Data *models.PositionsSummary `json:"data"`
}

// RiskUpdateMessage - сообщение с состоянием риск-леджера
type RiskUpdateMessage struct {
	BaseMessage
	Data *models.RiskStats `json:"data"`
}

// ============ Фабричные функции для создания сообщений ============

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(notif *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		Data: notif,
	}
}

// NewPositionsUpdateMessage создает сообщение сводки позиций
func NewPositionsUpdateMessage(summary *models.PositionsSummary) *PositionsUpdateMessage {
	return &PositionsUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePositionsUpdate,
			Timestamp: time.Now(),
		},
		Data: summary,
	}
}

// NewRiskUpdateMessage создает сообщение состояния риск-леджера
func NewRiskUpdateMessage(stats *models.RiskStats) *RiskUpdateMessage {
	return &RiskUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeRiskUpdate,
			Timestamp: time.Now(),
		},
		Data: stats,
	}
}
