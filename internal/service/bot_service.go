package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradebot/internal/bot"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// Ошибки сервиса
var (
	ErrEmptySignal = errors.New("signal request is empty")
)

// BotService предоставляет операторский фасад над торговым движком.
//
// Отвечает за:
// - Прием сигналов в структурированном виде и сырым текстом
// - Нормализацию и валидацию входных данных до движка
// - Операции сопровождения: безубыток, снятие позиции, мониторинг
// - Сводки позиций, риск-статистику и историю сделок для дашборда
type BotService struct {
	engine    EngineInterface
	parser    SignalParserInterface
	tradeRepo TradeRepositoryInterface // nil в demo-режиме без БД
}

// NewBotService создает новый экземпляр BotService
func NewBotService(engine EngineInterface, parser SignalParserInterface, tradeRepo TradeRepositoryInterface) *BotService {
	return &BotService{
		engine:    engine,
		parser:    parser,
		tradeRepo: tradeRepo,
	}
}

// ExecuteSignalRequest представляет запрос на исполнение сигнала.
// Либо RawText (текст из канала - уйдет в парсер), либо
// структурированные поля.
type ExecuteSignalRequest struct {
	RawText string `json:"raw_text,omitempty"`

	Symbol     string          `json:"symbol,omitempty"`
	Side       string          `json:"side,omitempty"`
	EntryPrice float64         `json:"entry_price,omitempty"`
	Targets    map[int]float64 `json:"targets,omitempty"`
	StopLoss   float64         `json:"stop_loss,omitempty"`
}

// ExecuteSignal исполняет торговый сигнал
func (s *BotService) ExecuteSignal(ctx context.Context, req *ExecuteSignalRequest) (*bot.ExecutionResult, error) {
	if req == nil {
		return nil, ErrEmptySignal
	}

	var sig *models.Signal
	if req.RawText != "" {
		parsed, err := s.parser.Parse(req.RawText)
		if err != nil {
			return nil, fmt.Errorf("parse signal text: %w", err)
		}
		sig = parsed
	} else {
		if req.Symbol == "" {
			return nil, ErrEmptySignal
		}
		sig = &models.Signal{
			Symbol:     utils.NormalizeSymbol(req.Symbol),
			Side:       req.Side,
			EntryPrice: req.EntryPrice,
			Targets:    req.Targets,
			StopLoss:   req.StopLoss,
			Source:     models.SignalSourceAPI,
			ReceivedAt: time.Now(),
		}
		if err := sig.Validate(); err != nil {
			return nil, err
		}
	}

	return s.engine.ExecuteSignal(ctx, sig), nil
}

// SetBreakeven переносит стоп позиции в безубыток
func (s *BotService) SetBreakeven(ctx context.Context, symbol string) error {
	normalized := utils.NormalizeSymbol(symbol)
	if err := utils.ValidateSymbol(normalized); err != nil {
		return err
	}
	return s.engine.MoveSLToBreakeven(ctx, normalized)
}

// RemovePosition снимает позицию с сопровождения
func (s *BotService) RemovePosition(ctx context.Context, symbol string, cancelOrders bool) error {
	normalized := utils.NormalizeSymbol(symbol)
	if err := utils.ValidateSymbol(normalized); err != nil {
		return err
	}
	return s.engine.RemovePosition(ctx, normalized, cancelOrders)
}

// StartMonitoring включает цикл мониторинга позиций
func (s *BotService) StartMonitoring() {
	s.engine.StartMonitoring()
}

// StopMonitoring выключает цикл мониторинга позиций
func (s *BotService) StopMonitoring() {
	s.engine.StopMonitoring()
}

// GetPositionsSummary возвращает сводку отслеживаемых позиций
func (s *BotService) GetPositionsSummary() *models.PositionsSummary {
	return s.engine.GetPositionsSummary()
}

// GetRiskStats возвращает сводку риск-леджера
func (s *BotService) GetRiskStats() *models.RiskStats {
	return s.engine.GetRiskStats()
}

// GetTradeHistory возвращает последние сделки из аудиторского журнала.
// Без БД (demo-режим) отдает ограниченную историю из леджера.
func (s *BotService) GetTradeHistory(ctx context.Context, limit int) ([]models.TradeRecord, error) {
	if s.tradeRepo == nil {
		trades := s.engine.GetRiskStats().RecentTrades
		if limit > 0 && len(trades) > limit {
			trades = trades[len(trades)-limit:]
		}
		return trades, nil
	}
	return s.tradeRepo.ListRecent(ctx, limit)
}

// GetTodayTrades возвращает сделки текущих суток (UTC)
func (s *BotService) GetTodayTrades(ctx context.Context) ([]models.TradeRecord, error) {
	dayStart := utils.GetDayStart()
	if s.tradeRepo == nil {
		all := s.engine.GetRiskStats().RecentTrades
		trades := make([]models.TradeRecord, 0, len(all))
		for _, rec := range all {
			if !rec.Timestamp.Before(dayStart) {
				trades = append(trades, rec)
			}
		}
		return trades, nil
	}
	return s.tradeRepo.ListSince(ctx, dayStart)
}
