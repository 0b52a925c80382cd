package service

import (
	"context"
	"time"

	"tradebot/internal/bot"
	"tradebot/internal/models"
)

// ============ Mock Engine ============

type MockEngine struct {
	executeResult *bot.ExecutionResult
	executedWith  *models.Signal

	breakevenErr     error
	breakevenSymbol  string
	removeErr        error
	removedSymbol    string
	removedCancel    bool
	monitoringActive bool

	positionsSummary *models.PositionsSummary
	riskStats        *models.RiskStats
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		executeResult:    &bot.ExecutionResult{Outcome: bot.OutcomeExecuted},
		positionsSummary: &models.PositionsSummary{Positions: []models.PositionSummary{}},
		riskStats:        &models.RiskStats{},
	}
}

func (m *MockEngine) ExecuteSignal(ctx context.Context, sig *models.Signal) *bot.ExecutionResult {
	m.executedWith = sig
	return m.executeResult
}

func (m *MockEngine) MoveSLToBreakeven(ctx context.Context, symbol string) error {
	m.breakevenSymbol = symbol
	return m.breakevenErr
}

func (m *MockEngine) RemovePosition(ctx context.Context, symbol string, cancelOrders bool) error {
	m.removedSymbol = symbol
	m.removedCancel = cancelOrders
	return m.removeErr
}

func (m *MockEngine) StartMonitoring() { m.monitoringActive = true }
func (m *MockEngine) StopMonitoring()  { m.monitoringActive = false }

func (m *MockEngine) GetPositionsSummary() *models.PositionsSummary { return m.positionsSummary }
func (m *MockEngine) GetRiskStats() *models.RiskStats               { return m.riskStats }

// ============ Mock SignalParser ============

type MockParser struct {
	signal   *models.Signal
	parseErr error
	lastText string
}

func (m *MockParser) Parse(text string) (*models.Signal, error) {
	m.lastText = text
	if m.parseErr != nil {
		return nil, m.parseErr
	}
	return m.signal, nil
}

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	trades  []models.TradeRecord
	listErr error
}

func (m *MockTradeRepository) ListRecent(ctx context.Context, limit int) ([]models.TradeRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if limit > 0 && len(m.trades) > limit {
		return m.trades[:limit], nil
	}
	return m.trades, nil
}

func (m *MockTradeRepository) ListSince(ctx context.Context, since time.Time) ([]models.TradeRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := make([]models.TradeRecord, 0, len(m.trades))
	for _, rec := range m.trades {
		if !rec.Timestamp.Before(since) {
			result = append(result, rec)
		}
	}
	return result, nil
}
