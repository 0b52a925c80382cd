package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

func testSignal() *models.Signal {
	return &models.Signal{
		Symbol:     "BTCUSDT",
		Side:       models.SideLong,
		EntryPrice: 100,
		Targets:    map[int]float64{1: 105, 2: 112},
		StopLoss:   95,
		Source:     models.SignalSourceAPI,
		ReceivedAt: time.Now(),
	}
}

func newTestExecutor(t *testing.T, gw exchange.Gateway, cfg ExecutorConfig) (*SignalExecutor, *RiskGate) {
	t.Helper()
	gate := newTestGate(t, nil)
	return NewSignalExecutor(gw, gate, cfg, nil, testLogger()), gate
}

func TestExecutor_RejectsInvalidSignal(t *testing.T) {
	gw := newMockGateway()
	exec, _ := newTestExecutor(t, gw, DefaultExecutorConfig())

	sig := testSignal()
	sig.EntryPrice = 0

	result := exec.Execute(context.Background(), sig)
	if result.Outcome != OutcomeRejected {
		t.Fatalf("ожидали rejected, получили %s", result.Outcome)
	}
	if len(gw.marketOrders) != 0 {
		t.Error("некорректный сигнал не должен доходить до биржи")
	}
}

func TestExecutor_BlockedByRiskGate(t *testing.T) {
	gw := newMockGateway()
	gw.balance = &exchange.Balance{
		TotalWalletBalance:    1000,
		TotalMarginBalance:    500, // уровень маржи 2.0 < 3.0
		TotalAvailableBalance: 100,
	}
	exec, _ := newTestExecutor(t, gw, DefaultExecutorConfig())

	result := exec.Execute(context.Background(), testSignal())
	if result.Outcome != OutcomeBlocked {
		t.Fatalf("ожидали blocked, получили %s", result.Outcome)
	}
	if !strings.Contains(result.Reason, "Margin level too low") {
		t.Errorf("неожиданная причина: %s", result.Reason)
	}
	if len(gw.marketOrders) != 0 {
		t.Error("заблокированный сигнал не должен доходить до биржи")
	}
}

func TestExecutor_BalanceErrorFails(t *testing.T) {
	gw := newMockGateway()
	gw.balanceErr = errors.New("api down")
	exec, _ := newTestExecutor(t, gw, DefaultExecutorConfig())

	result := exec.Execute(context.Background(), testSignal())
	if result.Outcome != OutcomeFailed {
		t.Fatalf("недоступный баланс - сбой инфраструктуры, ожидали failed, получили %s", result.Outcome)
	}
	if !strings.Contains(result.Reason, "wallet balance unavailable") {
		t.Errorf("неожиданная причина: %s", result.Reason)
	}
	if len(gw.marketOrders) != 0 {
		t.Error("сигнал без баланса не должен доходить до биржи")
	}
}

func TestExecutor_PercentSizing(t *testing.T) {
	gw := newMockGateway()
	gw.balance = &exchange.Balance{
		TotalWalletBalance:    1000,
		TotalAvailableBalance: 1000,
	}
	cfg := DefaultExecutorConfig()
	cfg.RiskPercentage = 2
	cfg.Leverage = 10
	cfg.MaxPositionSize = 100000
	exec, _ := newTestExecutor(t, gw, cfg)

	result := exec.Execute(context.Background(), testSignal())
	if result.Outcome != OutcomeExecuted {
		t.Fatalf("ожидали executed, получили %s (%s)", result.Outcome, result.Reason)
	}

	s := result.Sizing
	// 2% от 1000 = 20 маржи, 20*10 = 200 стоимость, 200/100 = 2.0 BTC
	if !utils.AlmostEqual(s.MarginAmount, 20, 1e-9) {
		t.Errorf("маржа: ожидали 20, получили %v", s.MarginAmount)
	}
	if !utils.AlmostEqual(s.PositionValue, 200, 1e-9) {
		t.Errorf("стоимость: ожидали 200, получили %v", s.PositionValue)
	}
	if !utils.AlmostEqual(s.Quantity, 2.0, 1e-9) {
		t.Errorf("количество: ожидали 2.0, получили %v", s.Quantity)
	}
}

func TestExecutor_FixedSizingWithCap(t *testing.T) {
	gw := newMockGateway()
	gw.balance = &exchange.Balance{
		TotalWalletBalance:    1000,
		TotalAvailableBalance: 1000,
	}
	cfg := DefaultExecutorConfig()
	cfg.FixedAmount = 5000 // больше доступного
	cfg.Leverage = 10
	cfg.MaxPositionSize = 2000
	exec, _ := newTestExecutor(t, gw, cfg)

	result := exec.Execute(context.Background(), testSignal())
	if result.Outcome != OutcomeExecuted {
		t.Fatalf("ожидали executed, получили %s (%s)", result.Outcome, result.Reason)
	}

	s := result.Sizing
	// Фикс 5000 урезан до доступных 1000, 1000*10 = 10000 урезано
	// пределом позиции до 2000, 2000/100 = 20 BTC
	if !utils.AlmostEqual(s.MarginAmount, 1000, 1e-9) {
		t.Errorf("маржа: ожидали 1000, получили %v", s.MarginAmount)
	}
	if !utils.AlmostEqual(s.PositionValue, 2000, 1e-9) {
		t.Errorf("стоимость: ожидали 2000, получили %v", s.PositionValue)
	}
	if !utils.AlmostEqual(s.Quantity, 20, 1e-9) {
		t.Errorf("количество: ожидали 20, получили %v", s.Quantity)
	}
}

func TestExecutor_QuantityBelowMinimumRejected(t *testing.T) {
	gw := newMockGateway()
	gw.balance = &exchange.Balance{TotalAvailableBalance: 1}
	gw.rules["BTCUSDT"] = &exchange.SymbolRules{Symbol: "BTCUSDT", QtyStep: 0.001, MinQty: 0.01, MaxQty: 100}
	cfg := DefaultExecutorConfig()
	cfg.RiskPercentage = 1
	cfg.Leverage = 1
	exec, _ := newTestExecutor(t, gw, cfg)

	result := exec.Execute(context.Background(), testSignal())
	if result.Outcome != OutcomeRejected {
		t.Fatalf("ожидали rejected, получили %s", result.Outcome)
	}
	if len(gw.marketOrders) != 0 {
		t.Error("слишком мелкий ордер не должен доходить до биржи")
	}
}

func TestExecutor_FailedOrderRecordsPenalty(t *testing.T) {
	gw := newMockGateway()
	gw.balance = &exchange.Balance{TotalAvailableBalance: 1000}
	gw.marketErr = errors.New("insufficient balance")
	cfg := DefaultExecutorConfig()
	cfg.RiskPercentage = 2
	exec, gate := newTestExecutor(t, gw, cfg)

	result := exec.Execute(context.Background(), testSignal())
	if result.Outcome != OutcomeFailed {
		t.Fatalf("ожидали failed, получили %s", result.Outcome)
	}

	// Штраф 1% от маржи (20 * 0.01 = 0.2) учтен в леджере
	stats := gate.Stats()
	if !utils.AlmostEqual(stats.DailyPnL, -0.2, 1e-9) {
		t.Errorf("ожидали daily pnl -0.2, получили %v", stats.DailyPnL)
	}
	if stats.ConsecutiveLosses != 1 {
		t.Errorf("неудачный ордер должен считаться убытком, серия %d", stats.ConsecutiveLosses)
	}
}

func TestExecutor_LeverageErrorIsNotFatal(t *testing.T) {
	gw := newMockGateway()
	gw.leverageErr = errors.New("leverage not modified")
	exec, _ := newTestExecutor(t, gw, DefaultExecutorConfig())

	result := exec.Execute(context.Background(), testSignal())
	if result.Outcome != OutcomeExecuted {
		t.Fatalf("ошибка установки плеча не должна отменять вход: %s (%s)", result.Outcome, result.Reason)
	}
}

func TestExecutor_SuccessBuildsPosition(t *testing.T) {
	gw := newMockGateway()
	exec, _ := newTestExecutor(t, gw, DefaultExecutorConfig())

	sig := testSignal()
	result := exec.Execute(context.Background(), sig)
	if result.Outcome != OutcomeExecuted {
		t.Fatalf("ожидали executed, получили %s (%s)", result.Outcome, result.Reason)
	}
	if result.Position == nil {
		t.Fatal("позиция не построена")
	}
	pos := result.Position
	if pos.Symbol != "BTCUSDT" || pos.Side != models.SideLong {
		t.Errorf("неверные атрибуты позиции: %s %s", pos.Symbol, pos.Side)
	}
	if pos.OrderID != result.OrderID {
		t.Errorf("id ордера не совпадает: %s != %s", pos.OrderID, result.OrderID)
	}
	if len(pos.Targets) != 2 {
		t.Errorf("цели не скопированы: %d", len(pos.Targets))
	}
	if len(gw.marketOrders) != 1 {
		t.Fatalf("ожидали 1 рыночный ордер, получили %d", len(gw.marketOrders))
	}
	if gw.marketOrders[0].Side != exchange.SideBuy {
		t.Errorf("long должен входить покупкой, получили %s", gw.marketOrders[0].Side)
	}
}

func TestExecutor_ShortEntersWithSell(t *testing.T) {
	gw := newMockGateway()
	exec, _ := newTestExecutor(t, gw, DefaultExecutorConfig())

	sig := testSignal()
	sig.Side = models.SideShort
	sig.Targets = map[int]float64{1: 95, 2: 90}
	sig.StopLoss = 105

	result := exec.Execute(context.Background(), sig)
	if result.Outcome != OutcomeExecuted {
		t.Fatalf("ожидали executed, получили %s (%s)", result.Outcome, result.Reason)
	}
	if gw.marketOrders[0].Side != exchange.SideSell {
		t.Errorf("short должен входить продажей, получили %s", gw.marketOrders[0].Side)
	}
}

func TestPositionIdxFor(t *testing.T) {
	tests := []struct {
		mode     string
		side     string
		expected int
	}{
		{PositionModeOneWay, models.SideLong, 0},
		{PositionModeOneWay, models.SideShort, 0},
		{PositionModeHedge, models.SideLong, 1},
		{PositionModeHedge, models.SideShort, 2},
	}

	for _, tt := range tests {
		if got := positionIdxFor(tt.mode, tt.side); got != tt.expected {
			t.Errorf("positionIdxFor(%s, %s): ожидали %d, получили %d",
				tt.mode, tt.side, tt.expected, got)
		}
	}
}
