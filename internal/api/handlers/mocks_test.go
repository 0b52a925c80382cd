package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradebot/internal/bot"
	"tradebot/internal/models"
	"tradebot/internal/service"
)

// ErrMockExchange общая ошибка для негативных сценариев
var ErrMockExchange = errors.New("mock exchange error")

// ============ Mock Bot Service ============

// MockBotService мок для BotServiceInterface
type MockBotService struct {
	executeResult *bot.ExecutionResult
	executeErr    error
	lastRequest   *service.ExecuteSignalRequest

	breakevenErr    error
	breakevenSymbol string

	removeErr     error
	removedSymbol string
	removedCancel bool

	monitoringActive bool

	summary   *models.PositionsSummary
	riskStats *models.RiskStats

	trades    []models.TradeRecord
	tradesErr error

	mu sync.Mutex
}

// NewMockBotService создает новый мок операторского сервиса
func NewMockBotService() *MockBotService {
	return &MockBotService{
		executeResult: &bot.ExecutionResult{
			Outcome: bot.OutcomeExecuted,
			OrderID: "MOCK-1",
			Symbol:  "BTCUSDT",
		},
		summary:   &models.PositionsSummary{Positions: []models.PositionSummary{}},
		riskStats: &models.RiskStats{},
	}
}

func (m *MockBotService) ExecuteSignal(ctx context.Context, req *service.ExecuteSignalRequest) (*bot.ExecutionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRequest = req
	if m.executeErr != nil {
		return nil, m.executeErr
	}
	return m.executeResult, nil
}

func (m *MockBotService) SetBreakeven(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakevenErr != nil {
		return m.breakevenErr
	}
	m.breakevenSymbol = symbol
	return nil
}

func (m *MockBotService) RemovePosition(ctx context.Context, symbol string, cancelOrders bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removedSymbol = symbol
	m.removedCancel = cancelOrders
	return nil
}

func (m *MockBotService) StartMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monitoringActive = true
}

func (m *MockBotService) StopMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monitoringActive = false
}

func (m *MockBotService) GetPositionsSummary() *models.PositionsSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

func (m *MockBotService) GetRiskStats() *models.RiskStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.riskStats
}

func (m *MockBotService) GetTradeHistory(ctx context.Context, limit int) ([]models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tradesErr != nil {
		return nil, m.tradesErr
	}
	if limit > 0 && len(m.trades) > limit {
		return m.trades[:limit], nil
	}
	return m.trades, nil
}

func (m *MockBotService) GetTodayTrades(ctx context.Context) ([]models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tradesErr != nil {
		return nil, m.tradesErr
	}
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	result := make([]models.TradeRecord, 0, len(m.trades))
	for _, rec := range m.trades {
		if !rec.Timestamp.Before(dayStart) {
			result = append(result, rec)
		}
	}
	return result, nil
}
