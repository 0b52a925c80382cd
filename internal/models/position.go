package models

import (
	"sort"
	"time"
)

// Вид размещенного стоп-лосса. От вида зависит способ отмены:
// нативный стоп снимается повторным вызовом trading-stop с пустой ценой,
// условный — отменой ордера по id.
const (
	StopKindNone        = ""            // стоп не размещен
	StopKindNative      = "native"      // position-level trading stop биржи
	StopKindConditional = "conditional" // reduce-only условный ордер
)

// Position представляет отслеживаемую ботом позицию.
// Одна позиция на символ; владеет ею исключительно PositionTracker,
// состояние живет только в памяти процесса.
type Position struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"` // long, short
	EntryPrice float64 `json:"entry_price"`
	OrderID    string  `json:"order_id"` // id входного ордера на бирже
	Quantity   float64 `json:"quantity"` // запрошенный объем входа

	Targets          map[int]float64 `json:"targets"`            // индекс -> цена
	FilledTargets    map[int]bool    `json:"filled_targets"`     // только растет, никогда не сокращается
	TakeProfitOrders map[int]string  `json:"take_profit_orders"` // индекс -> id ордера на бирже

	StopLossPrice   float64 `json:"stop_loss_price,omitempty"`
	StopLossOrderID string  `json:"stop_loss_order_id,omitempty"`
	StopLossKind    string  `json:"stop_loss_kind,omitempty"` // StopKind*

	StopMovedToBreakeven   bool `json:"stop_moved_to_breakeven"` // монотонно false -> true
	BreakevenTriggerTarget int  `json:"breakeven_trigger_target"`

	CreatedAt time.Time `json:"created_at"`

	// Диагностика, обновляется на каждом тике мониторинга
	LastObservedPrice float64 `json:"last_observed_price"`
	PriceCheckCount   int64   `json:"price_check_count"`
}

// NewPosition создает позицию из сигнала и результата входного ордера.
func NewPosition(sig *Signal, orderID string, qty float64, breakevenTarget int) *Position {
	if breakevenTarget < 1 {
		breakevenTarget = 1
	}
	targets := make(map[int]float64, len(sig.Targets))
	for idx, price := range sig.Targets {
		targets[idx] = price
	}
	return &Position{
		Symbol:                 sig.Symbol,
		Side:                   sig.Side,
		EntryPrice:             sig.EntryPrice,
		OrderID:                orderID,
		Quantity:               qty,
		Targets:                targets,
		FilledTargets:          make(map[int]bool),
		TakeProfitOrders:       make(map[int]string),
		StopLossPrice:          sig.StopLoss,
		BreakevenTriggerTarget: breakevenTarget,
		CreatedAt:              time.Now(),
	}
}

// Clone возвращает глубокую копию позиции. Снимок для читателей вне
// цикла опроса: карты копируются, оригинал продолжает мутировать трекер.
func (p *Position) Clone() *Position {
	clone := *p
	clone.Targets = make(map[int]float64, len(p.Targets))
	for idx, price := range p.Targets {
		clone.Targets[idx] = price
	}
	clone.FilledTargets = make(map[int]bool, len(p.FilledTargets))
	for idx, done := range p.FilledTargets {
		clone.FilledTargets[idx] = done
	}
	clone.TakeProfitOrders = make(map[int]string, len(p.TakeProfitOrders))
	for idx, orderID := range p.TakeProfitOrders {
		clone.TakeProfitOrders[idx] = orderID
	}
	return &clone
}

// TargetIndexes возвращает индексы целей по возрастанию.
func (p *Position) TargetIndexes() []int {
	indexes := make([]int, 0, len(p.Targets))
	for idx := range p.Targets {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	return indexes
}

// UnfilledTargets возвращает индексы еще не достигнутых целей по возрастанию.
func (p *Position) UnfilledTargets() []int {
	indexes := make([]int, 0, len(p.Targets))
	for idx := range p.Targets {
		if !p.FilledTargets[idx] {
			indexes = append(indexes, idx)
		}
	}
	sort.Ints(indexes)
	return indexes
}

// TargetReached определяет достижение цели по цене с учетом направления:
// long — цена >= цели, short — цена <= цели.
func (p *Position) TargetReached(targetPrice, currentPrice float64) bool {
	if p.Side == SideLong {
		return currentPrice >= targetPrice
	}
	return currentPrice <= targetPrice
}

// BreakevenTriggered сообщает, достигнута ли цель, после которой стоп
// переносится в безубыток, и не был ли перенос уже выполнен.
func (p *Position) BreakevenTriggered() bool {
	return !p.StopMovedToBreakeven && p.FilledTargets[p.BreakevenTriggerTarget]
}

// HasStopLoss сообщает, есть ли у позиции размещенный стоп.
func (p *Position) HasStopLoss() bool {
	return p.StopLossKind != StopKindNone
}
