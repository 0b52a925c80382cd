package exchange

import (
	"context"
)

// Gateway определяет унифицированный интерфейс доступа к бирже деривативов.
// Все методы блокирующие, ограничиваются переданным контекстом.
// Ошибки биржи приходят типизированными (*ExchangeError), сырые ответы
// наружу не выходят.
type Gateway interface {
	// Name возвращает имя биржи
	Name() string

	// GetWalletBalance получает баланс фьючерсного аккаунта в USDT
	GetWalletBalance(ctx context.Context) (*Balance, error)

	// GetSymbolRules получает торговые правила символа (шаг лота, мин/макс объем)
	GetSymbolRules(ctx context.Context, symbol string) (*SymbolRules, error)

	// GetLastPrice получает цену последней сделки
	GetLastPrice(ctx context.Context, symbol string) (float64, error)

	// GetPositionSize возвращает текущий размер позиции по символу (0 если позиции нет)
	GetPositionSize(ctx context.Context, symbol string) (float64, error)

	// PlaceMarketOrder размещает рыночный ордер
	PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64, positionIdx int) (*OrderResult, error)

	// PlaceLimitOrder размещает лимитный ордер (reduceOnly для тейк-профитов)
	PlaceLimitOrder(ctx context.Context, symbol, side string, qty, price float64, reduceOnly bool, positionIdx int) (*OrderResult, error)

	// SetTradingStop устанавливает нативный stop loss на уровне позиции.
	// Пустая цена снимает стоп.
	SetTradingStop(ctx context.Context, symbol, stopPrice string, positionIdx int) error

	// PlaceConditionalStop размещает условный reduce-only стоп-ордер
	// (fallback когда нативный trading stop недоступен)
	PlaceConditionalStop(ctx context.Context, symbol, side string, qty, triggerPrice float64, positionIdx int) (*OrderResult, error)

	// CancelOrder отменяет ордер по id
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// GetOrderStatus возвращает статус ордера
	GetOrderStatus(ctx context.Context, symbol, orderID string) (OrderStatus, error)

	// SetLeverage устанавливает плечо для символа
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// Balance содержит баланс фьючерсного аккаунта
type Balance struct {
	TotalWalletBalance    float64 `json:"total_wallet_balance"`    // весь капитал
	TotalMarginBalance    float64 `json:"total_margin_balance"`    // занято маржой
	TotalAvailableBalance float64 `json:"total_available_balance"` // доступно для новых позиций
}

// SymbolRules содержит торговые ограничения биржи для символа
type SymbolRules struct {
	Symbol  string  `json:"symbol"`
	QtyStep float64 `json:"qty_step"` // шаг изменения количества (lot size)
	MinQty  float64 `json:"min_qty"`  // минимальный размер ордера
	MaxQty  float64 `json:"max_qty"`  // максимальный размер ордера
}

// OrderResult представляет принятый биржей ордер
type OrderResult struct {
	OrderID      string  `json:"order_id"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	Quantity     float64 `json:"quantity"`
	FilledQty    float64 `json:"filled_qty"`
	AvgFillPrice float64 `json:"avg_fill_price"`
}

// OrderStatus — статус ордера на бирже
type OrderStatus string

const (
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusUnknown         OrderStatus = "unknown"
)

// Side constants for orders (используются при размещении ордеров)
const (
	SideBuy  = "buy"  // покупка (открытие long или закрытие short)
	SideSell = "sell" // продажа (открытие short или закрытие long)
)

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}
