package service

import (
	"context"
	"time"

	"tradebot/internal/bot"
	"tradebot/internal/models"
)

// EngineInterface определяет интерфейс торгового движка
type EngineInterface interface {
	ExecuteSignal(ctx context.Context, sig *models.Signal) *bot.ExecutionResult
	MoveSLToBreakeven(ctx context.Context, symbol string) error
	RemovePosition(ctx context.Context, symbol string, cancelOrders bool) error
	StartMonitoring()
	StopMonitoring()
	GetPositionsSummary() *models.PositionsSummary
	GetRiskStats() *models.RiskStats
}

// BotServiceInterface определяет интерфейс операторского фасада для API handlers
type BotServiceInterface interface {
	ExecuteSignal(ctx context.Context, req *ExecuteSignalRequest) (*bot.ExecutionResult, error)
	SetBreakeven(ctx context.Context, symbol string) error
	RemovePosition(ctx context.Context, symbol string, cancelOrders bool) error
	StartMonitoring()
	StopMonitoring()
	GetPositionsSummary() *models.PositionsSummary
	GetRiskStats() *models.RiskStats
	GetTradeHistory(ctx context.Context, limit int) ([]models.TradeRecord, error)
	GetTodayTrades(ctx context.Context) ([]models.TradeRecord, error)
}

// SignalParserInterface определяет интерфейс парсера текстовых сигналов
type SignalParserInterface interface {
	Parse(text string) (*models.Signal, error)
}

// TradeRepositoryInterface определяет интерфейс журнала сделок
type TradeRepositoryInterface interface {
	ListRecent(ctx context.Context, limit int) ([]models.TradeRecord, error)
	ListSince(ctx context.Context, since time.Time) ([]models.TradeRecord, error)
}
