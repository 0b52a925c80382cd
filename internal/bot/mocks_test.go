package bot

import (
	"context"
	"fmt"
	"sync"

	"tradebot/internal/exchange"
)

// mockGateway - управляемая заглушка биржи для тестов пакета.
// Все поля защищены мьютексом: цикл мониторинга работает из своей горутины.
type mockGateway struct {
	mu sync.Mutex

	balance    *exchange.Balance
	balanceErr error

	rules    map[string]*exchange.SymbolRules
	rulesErr error

	prices   map[string]float64
	priceErr error

	positionSizes map[string]float64

	orderStatuses map[string]exchange.OrderStatus

	marketErr      error
	limitErr       error
	tradingStopErr error
	conditionalErr error
	cancelErr      error
	leverageErr    error

	nextID int

	marketOrders     []mockOrder
	limitOrders      []mockOrder
	conditionalStops []mockOrder
	tradingStops     []mockTradingStop
	cancelledOrders  []string
	leverageCalls    []int
}

type mockOrder struct {
	Symbol     string
	Side       string
	Qty        float64
	Price      float64
	ReduceOnly bool
	PosIdx     int
	OrderID    string
}

type mockTradingStop struct {
	Symbol    string
	StopPrice string
	PosIdx    int
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		balance: &exchange.Balance{
			TotalWalletBalance:    10000,
			TotalMarginBalance:    0,
			TotalAvailableBalance: 10000,
		},
		rules:         make(map[string]*exchange.SymbolRules),
		prices:        make(map[string]float64),
		positionSizes: make(map[string]float64),
		orderStatuses: make(map[string]exchange.OrderStatus),
	}
}

func (m *mockGateway) genID() string {
	m.nextID++
	return fmt.Sprintf("MOCK-%d", m.nextID)
}

func (m *mockGateway) Name() string { return "mock" }

func (m *mockGateway) GetWalletBalance(ctx context.Context) (*exchange.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	b := *m.balance
	return &b, nil
}

func (m *mockGateway) GetSymbolRules(ctx context.Context, symbol string) (*exchange.SymbolRules, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rulesErr != nil {
		return nil, m.rulesErr
	}
	if r, ok := m.rules[symbol]; ok {
		cp := *r
		return &cp, nil
	}
	return &exchange.SymbolRules{Symbol: symbol, QtyStep: 0.001, MinQty: 0.001, MaxQty: 100000}, nil
}

func (m *mockGateway) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.priceErr != nil {
		return 0, m.priceErr
	}
	return m.prices[symbol], nil
}

func (m *mockGateway) GetPositionSize(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionSizes[symbol], nil
}

func (m *mockGateway) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64, positionIdx int) (*exchange.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marketErr != nil {
		return nil, m.marketErr
	}
	id := m.genID()
	m.marketOrders = append(m.marketOrders, mockOrder{Symbol: symbol, Side: side, Qty: qty, PosIdx: positionIdx, OrderID: id})
	return &exchange.OrderResult{OrderID: id, Symbol: symbol, Side: side, Quantity: qty, FilledQty: qty}, nil
}

func (m *mockGateway) PlaceLimitOrder(ctx context.Context, symbol, side string, qty, price float64, reduceOnly bool, positionIdx int) (*exchange.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limitErr != nil {
		return nil, m.limitErr
	}
	id := m.genID()
	m.limitOrders = append(m.limitOrders, mockOrder{Symbol: symbol, Side: side, Qty: qty, Price: price, ReduceOnly: reduceOnly, PosIdx: positionIdx, OrderID: id})
	m.orderStatuses[id] = exchange.OrderStatusOpen
	return &exchange.OrderResult{OrderID: id, Symbol: symbol, Side: side, Quantity: qty}, nil
}

func (m *mockGateway) SetTradingStop(ctx context.Context, symbol, stopPrice string, positionIdx int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tradingStopErr != nil {
		return m.tradingStopErr
	}
	m.tradingStops = append(m.tradingStops, mockTradingStop{Symbol: symbol, StopPrice: stopPrice, PosIdx: positionIdx})
	return nil
}

func (m *mockGateway) PlaceConditionalStop(ctx context.Context, symbol, side string, qty, triggerPrice float64, positionIdx int) (*exchange.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conditionalErr != nil {
		return nil, m.conditionalErr
	}
	id := m.genID()
	m.conditionalStops = append(m.conditionalStops, mockOrder{Symbol: symbol, Side: side, Qty: qty, Price: triggerPrice, PosIdx: positionIdx, OrderID: id})
	m.orderStatuses[id] = exchange.OrderStatusOpen
	return &exchange.OrderResult{OrderID: id, Symbol: symbol, Side: side, Quantity: qty}, nil
}

func (m *mockGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelledOrders = append(m.cancelledOrders, orderID)
	m.orderStatuses[orderID] = exchange.OrderStatusCancelled
	return nil
}

func (m *mockGateway) GetOrderStatus(ctx context.Context, symbol, orderID string) (exchange.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.orderStatuses[orderID]; ok {
		return status, nil
	}
	return exchange.OrderStatusUnknown, nil
}

func (m *mockGateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.leverageErr != nil {
		return m.leverageErr
	}
	m.leverageCalls = append(m.leverageCalls, leverage)
	return nil
}

// setPrice обновляет котировку потокобезопасно
func (m *mockGateway) setPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// setPositionSize обновляет размер позиции на "бирже"
func (m *mockGateway) setPositionSize(symbol string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionSizes[symbol] = size
}

// setOrderStatus обновляет статус ордера
func (m *mockGateway) setOrderStatus(orderID string, status exchange.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderStatuses[orderID] = status
}

// tradingStopCalls возвращает копию журнала вызовов trading stop
func (m *mockGateway) tradingStopCalls() []mockTradingStop {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockTradingStop(nil), m.tradingStops...)
}

// limitOrderCalls возвращает копию журнала лимитных ордеров
func (m *mockGateway) limitOrderCalls() []mockOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockOrder(nil), m.limitOrders...)
}
