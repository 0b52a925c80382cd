package bot

import (
	"context"
	"fmt"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// Режимы позиций на бирже
const (
	PositionModeOneWay = "oneway" // одна позиция на символ
	PositionModeHedge  = "hedge"  // раздельные long/short позиции
)

// Исходы обработки сигнала
const (
	OutcomeExecuted = "executed" // ордер размещен, позиция открыта
	OutcomeBlocked  = "blocked"  // отказ риск-гейта
	OutcomeRejected = "rejected" // сигнал некорректен или размер ниже минимума
	OutcomeFailed   = "failed"   // ошибка биржи
)

// ExecutorConfig - параметры исполнения сигналов
type ExecutorConfig struct {
	PositionMode    string  // oneway или hedge
	RiskPercentage  float64 // процент доступного баланса на сделку
	FixedAmount     float64 // фиксированная маржа на сделку, 0 = процентная
	Leverage        int     // плечо по умолчанию
	MaxPositionSize float64 // верхний предел стоимости позиции, USDT
	BreakevenTarget int     // цель, после которой стоп уходит в безубыток
}

// DefaultExecutorConfig возвращает конфигурацию по умолчанию
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		PositionMode:    PositionModeOneWay,
		RiskPercentage:  2.0,
		FixedAmount:     0,
		Leverage:        10,
		MaxPositionSize: 10000,
		BreakevenTarget: 1,
	}
}

// SizingSummary - расчет размера позиции, возвращается оператору
// вместе с результатом для прозрачности решения.
type SizingSummary struct {
	AvailableBalance float64 `json:"available_balance"`
	MarginAmount     float64 `json:"margin_amount"`  // маржа, выделенная на сделку
	Leverage         int     `json:"leverage"`
	PositionValue    float64 `json:"position_value"` // маржа * плечо с учетом предела
	RawQuantity      float64 `json:"raw_quantity"`   // до квантования
	Quantity         float64 `json:"quantity"`       // после шага лота и границ
}

// ExecutionResult - итог обработки сигнала
type ExecutionResult struct {
	Outcome  string           `json:"outcome"` // Outcome*
	Reason   string           `json:"reason,omitempty"`
	OrderID  string           `json:"order_id,omitempty"`
	Symbol   string           `json:"symbol"`
	Sizing   *SizingSummary   `json:"sizing,omitempty"`
	Position *models.Position `json:"-"` // заполнен только при OutcomeExecuted
}

// SignalExecutor превращает торговый сигнал в рыночный ордер.
//
// Конвейер:
// 1. Валидация сигнала
// 2. Баланс -> риск-гейт (fail closed)
// 3. Торговые правила символа
// 4. Расчет размера: маржа -> стоимость позиции -> количество
// 5. Плечо (best effort) и рыночный ордер
//
// Неудачное размещение ордера учитывается в риск-леджере
// как небольшой убыток: комиссия и проскальзывание уже потрачены.
type SignalExecutor struct {
	gateway exchange.Gateway
	risk    *RiskGate
	config  ExecutorConfig

	notificationChan chan<- *models.Notification
	log              *utils.Logger
}

// NewSignalExecutor создает исполнитель сигналов
func NewSignalExecutor(gateway exchange.Gateway, risk *RiskGate, cfg ExecutorConfig, notifChan chan<- *models.Notification, log *utils.Logger) *SignalExecutor {
	return &SignalExecutor{
		gateway:          gateway,
		risk:             risk,
		config:           cfg,
		notificationChan: notifChan,
		log:              log,
	}
}

// positionIdxFor возвращает индекс позиции для API биржи:
// hedge-режим различает направления, oneway всегда 0.
func positionIdxFor(mode, side string) int {
	if mode != PositionModeHedge {
		return 0
	}
	if side == models.SideLong {
		return 1
	}
	return 2
}

// entrySide возвращает сторону входного ордера
func entrySide(side string) string {
	if side == models.SideLong {
		return exchange.SideBuy
	}
	return exchange.SideSell
}

// closeSide возвращает сторону закрывающих ордеров (TP, SL)
func closeSide(side string) string {
	if side == models.SideLong {
		return exchange.SideSell
	}
	return exchange.SideBuy
}

// calculateSizing считает размер позиции по балансу и правилам символа.
// Маржа: фиксированная сумма (но не больше доступного) либо процент
// от доступного баланса. Стоимость позиции ограничена сверху, количество
// квантуется вниз до шага лота и зажимается биржевыми границами.
func (e *SignalExecutor) calculateSizing(balance *exchange.Balance, rules *exchange.SymbolRules, entryPrice float64) *SizingSummary {
	available := balance.TotalAvailableBalance

	var margin float64
	if e.config.FixedAmount > 0 {
		margin = utils.Min(e.config.FixedAmount, available)
	} else {
		margin = available * e.config.RiskPercentage / 100
	}

	positionValue := margin * float64(e.config.Leverage)
	if e.config.MaxPositionSize > 0 {
		positionValue = utils.Min(positionValue, e.config.MaxPositionSize)
	}

	rawQty := positionValue / entryPrice
	qty := utils.RoundToLotSize(rawQty, rules.QtyStep)
	if qty > 0 {
		qty = utils.Clamp(qty, rules.MinQty, rules.MaxQty)
	}

	return &SizingSummary{
		AvailableBalance: available,
		MarginAmount:     margin,
		Leverage:         e.config.Leverage,
		PositionValue:    positionValue,
		RawQuantity:      rawQty,
		Quantity:         qty,
	}
}

// Execute обрабатывает сигнал до размещения входного ордера включительно.
// Сопровождение открытой позиции (TP/SL, мониторинг) - зона
// ответственности PositionTracker, см. Engine.
func (e *SignalExecutor) Execute(ctx context.Context, sig *models.Signal) *ExecutionResult {
	log := e.log.WithSymbol(sig.Symbol)

	// 1. Валидация
	if err := sig.Validate(); err != nil {
		RecordTradeOutcome(sig.Symbol, OutcomeRejected)
		return &ExecutionResult{
			Outcome: OutcomeRejected,
			Reason:  fmt.Sprintf("invalid signal: %v", err),
			Symbol:  sig.Symbol,
		}
	}

	// 2. Баланс и риск-гейт. Недоступный баланс - инфраструктурный
	// сбой, а не блокировка гейтом.
	balance, err := e.gateway.GetWalletBalance(ctx)
	if err != nil {
		log.Errorf("wallet balance: %v", err)
		RecordTradeOutcome(sig.Symbol, OutcomeFailed)
		return &ExecutionResult{
			Outcome: OutcomeFailed,
			Reason:  fmt.Sprintf("wallet balance unavailable: %v", err),
			Symbol:  sig.Symbol,
		}
	}
	allowed, reason := e.risk.CanTrade(ctx, balance)
	if !allowed {
		log.Warnf("trade blocked: %s", reason)
		RecordTradeOutcome(sig.Symbol, OutcomeBlocked)
		e.notify(models.NotificationTypeTradeBlocked, models.SeverityWarn, sig.Symbol,
			fmt.Sprintf("🚫 %s: trade blocked - %s", sig.Symbol, reason))
		return &ExecutionResult{Outcome: OutcomeBlocked, Reason: reason, Symbol: sig.Symbol}
	}

	// 3. Торговые правила символа
	rules, err := e.gateway.GetSymbolRules(ctx, sig.Symbol)
	if err != nil {
		log.Errorf("symbol rules: %v", err)
		RecordTradeOutcome(sig.Symbol, OutcomeFailed)
		return &ExecutionResult{
			Outcome: OutcomeFailed,
			Reason:  fmt.Sprintf("symbol rules unavailable: %v", err),
			Symbol:  sig.Symbol,
		}
	}

	// 4. Размер позиции
	sizing := e.calculateSizing(balance, rules, sig.EntryPrice)
	if sizing.Quantity <= 0 || sizing.Quantity < rules.MinQty {
		RecordTradeOutcome(sig.Symbol, OutcomeRejected)
		return &ExecutionResult{
			Outcome: OutcomeRejected,
			Reason: fmt.Sprintf("position size %.8f below exchange minimum %.8f",
				sizing.Quantity, rules.MinQty),
			Symbol: sig.Symbol,
			Sizing: sizing,
		}
	}

	posIdx := positionIdxFor(e.config.PositionMode, sig.Side)

	// 5. Плечо - best effort: на многих аккаунтах оно уже установлено,
	// и биржа отвечает ошибкой "leverage not modified".
	if err := e.gateway.SetLeverage(ctx, sig.Symbol, e.config.Leverage); err != nil {
		log.Warnf("set leverage %dx: %v", e.config.Leverage, err)
	}

	// 6. Рыночный ордер
	start := time.Now()
	order, err := e.gateway.PlaceMarketOrder(ctx, sig.Symbol, entrySide(sig.Side), sizing.Quantity, posIdx)
	OrderPlacementLatency.WithLabelValues("market").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		log.Errorf("market order failed: %v", err)
		// Неудачный вход - это расход (комиссии, частичное проскальзывание),
		// учитываем как символический убыток
		penalty := -sizing.MarginAmount * 0.01
		if recErr := e.risk.RecordTrade(ctx, sig.Symbol, penalty); recErr != nil {
			log.Errorf("record failed-order penalty: %v", recErr)
		}
		RecordTradeOutcome(sig.Symbol, OutcomeFailed)
		e.notify(models.NotificationTypeError, models.SeverityError, sig.Symbol,
			fmt.Sprintf("❌ %s: order failed - %v", sig.Symbol, err))
		return &ExecutionResult{
			Outcome: OutcomeFailed,
			Reason:  fmt.Sprintf("order placement failed: %v", err),
			Symbol:  sig.Symbol,
			Sizing:  sizing,
		}
	}

	position := models.NewPosition(sig, order.OrderID, sizing.Quantity, e.config.BreakevenTarget)
	if order.AvgFillPrice > 0 {
		position.EntryPrice = order.AvgFillPrice
	}

	log.Infof("position opened: %s %s qty=%s entry=%.8g order=%s",
		sig.Side, sig.Symbol, utils.FormatQty(sizing.Quantity, rules.QtyStep), position.EntryPrice, order.OrderID)
	RecordTradeOutcome(sig.Symbol, OutcomeExecuted)
	e.notify(models.NotificationTypePositionOpened, models.SeverityInfo, sig.Symbol,
		fmt.Sprintf("✅ %s %s opened: qty %s @ %.8g",
			sig.Symbol, sig.Side, utils.FormatQty(sizing.Quantity, rules.QtyStep), position.EntryPrice))

	return &ExecutionResult{
		Outcome:  OutcomeExecuted,
		OrderID:  order.OrderID,
		Symbol:   sig.Symbol,
		Sizing:   sizing,
		Position: position,
	}
}

func (e *SignalExecutor) notify(notifType, severity, symbol, message string) {
	tryEnqueueNotification(e.notificationChan, models.NewNotification(notifType, severity, symbol, message))
}
