package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// tradingStopPrefix - сентинел вместо id ордера для нативного стопа:
// trading stop живет на уровне позиции и собственного ордера не имеет.
const tradingStopPrefix = "TRADING_STOP_"

// keyedMutex сериализует операции по ключу (символу). Мьютексы не
// освобождаются: число активных символов ограничено и невелико.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (km *keyedMutex) get(key string) *sync.Mutex {
	km.mu.Lock()
	defer km.mu.Unlock()
	if m, ok := km.locks[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	km.locks[key] = m
	return m
}

// TrackerConfig - параметры сопровождения позиций
type TrackerConfig struct {
	PositionMode string        // oneway или hedge
	PollInterval time.Duration // период опроса цен и статусов
	SetupDelay   time.Duration // пауза перед размещением TP/SL после входа
	CallTimeout  time.Duration // таймаут одного вызова биржи в цикле
	ErrorBackoff time.Duration // пауза цикла после паники тика
}

// DefaultTrackerConfig возвращает конфигурацию по умолчанию
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		PositionMode: PositionModeOneWay,
		PollInterval: 15 * time.Second,
		SetupDelay:   2 * time.Second,
		CallTimeout:  10 * time.Second,
		ErrorBackoff: 60 * time.Second,
	}
}

// PositionTracker сопровождает открытые позиции: размещает TP/SL,
// опрашивает биржу, детектирует исполнение целей и стопа, переносит
// стоп в безубыток.
//
// Конкурентность:
// - positions под RWMutex, мутации каждой позиции сериализованы
//   по символу через keyedMutex
// - цикл мониторинга один, StopMonitoring дожидается завершения
//   текущего тика
//
// Детект исполнения целей двухканальный: по цене (быстро, работает
// даже без размещенных TP-ордеров) и по статусу ордера (точно).
// Объединение монотонно: однажды исполненная цель исполненной
// и остается.
type PositionTracker struct {
	gateway exchange.Gateway
	risk    *RiskGate
	config  TrackerConfig

	mu        sync.RWMutex
	positions map[string]*models.Position
	symLocks  *keyedMutex

	monMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	notificationChan chan<- *models.Notification
	log              *utils.Logger
}

// NewPositionTracker создает трекер позиций
func NewPositionTracker(gateway exchange.Gateway, risk *RiskGate, cfg TrackerConfig, notifChan chan<- *models.Notification, log *utils.Logger) *PositionTracker {
	return &PositionTracker{
		gateway:          gateway,
		risk:             risk,
		config:           cfg,
		positions:        make(map[string]*models.Position),
		symLocks:         newKeyedMutex(),
		notificationChan: notifChan,
		log:              log,
	}
}

// formatPrice форматирует цену для API биржи
func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// ============================================================
// Регистрация позиции и размещение TP/SL
// ============================================================

// Track берет позицию на сопровождение. После паузы (вход должен
// отразиться в позиции на бирже) размещает TP/SL ордера, сверяясь
// с фактическим размером позиции.
func (t *PositionTracker) Track(ctx context.Context, pos *models.Position) error {
	if pos == nil {
		return fmt.Errorf("position is nil")
	}

	lock := t.symLocks.get(pos.Symbol)
	lock.Lock()
	t.mu.Lock()
	if _, exists := t.positions[pos.Symbol]; exists {
		t.mu.Unlock()
		lock.Unlock()
		return fmt.Errorf("position for %s is already tracked", pos.Symbol)
	}
	t.positions[pos.Symbol] = pos
	OpenPositions.Set(float64(len(t.positions)))
	t.mu.Unlock()
	lock.Unlock()

	// Пауза перед размещением TP/SL: market-ордер должен исполниться
	// и попасть в позицию на стороне биржи
	if t.config.SetupDelay > 0 {
		timer := time.NewTimer(t.config.SetupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	lock.Lock()
	defer lock.Unlock()
	return t.setupOrdersLocked(ctx, pos)
}

// setupOrdersLocked размещает TP и SL ордера для позиции.
// Вызывается под символьным локом.
func (t *PositionTracker) setupOrdersLocked(ctx context.Context, pos *models.Position) error {
	log := t.log.WithSymbol(pos.Symbol)

	// Сверяемся с фактическим размером: вход мог не исполниться
	// или исполниться частично
	liveQty, err := t.gateway.GetPositionSize(ctx, pos.Symbol)
	if err != nil {
		return fmt.Errorf("verify position size: %w", err)
	}
	if liveQty <= 0 {
		log.Warnf("no live position on exchange, dropping from tracking")
		t.removeLocked(pos.Symbol, "entry order was not filled")
		return fmt.Errorf("position %s has no size on exchange", pos.Symbol)
	}
	if liveQty != pos.Quantity {
		log.Warnf("live position size %.8f differs from requested %.8f, using live",
			liveQty, pos.Quantity)
		pos.Quantity = liveQty
	}

	rules, err := t.gateway.GetSymbolRules(ctx, pos.Symbol)
	if err != nil {
		return fmt.Errorf("symbol rules: %w", err)
	}

	posIdx := positionIdxFor(t.config.PositionMode, pos.Side)
	exit := closeSide(pos.Side)

	// Цели с неправильной стороны от входа отбрасываются поштучно,
	// корректные сохраняются
	validTargets := make([]int, 0, len(pos.Targets))
	for _, idx := range pos.TargetIndexes() {
		price := pos.Targets[idx]
		if !targetValidForSide(pos.Side, pos.EntryPrice, price) {
			log.Warnf("target %d (%.8g) is on the wrong side of entry %.8g, skipping",
				idx, price, pos.EntryPrice)
			continue
		}
		validTargets = append(validTargets, idx)
	}

	// Равное разбиение объема по целям, последняя часть забирает остаток
	if len(validTargets) > 0 {
		parts := utils.SplitVolume(liveQty, len(validTargets), rules.QtyStep)
		for i, idx := range validTargets {
			if parts[i] < rules.MinQty {
				log.Warnf("target %d part %.8f below min qty %.8f, skipping leg",
					idx, parts[i], rules.MinQty)
				continue
			}
			start := time.Now()
			order, err := t.gateway.PlaceLimitOrder(ctx, pos.Symbol, exit, parts[i], pos.Targets[idx], true, posIdx)
			OrderPlacementLatency.WithLabelValues("limit").Observe(float64(time.Since(start).Milliseconds()))
			if err != nil {
				// Цель без ордера продолжает детектироваться по цене
				log.Errorf("take profit %d: %v", idx, err)
				continue
			}
			pos.TakeProfitOrders[idx] = order.OrderID
			log.Infof("take profit %d placed: qty=%s @ %.8g order=%s",
				idx, utils.FormatQty(parts[i], rules.QtyStep), pos.Targets[idx], order.OrderID)
		}
	}

	// Стоп-лосс: нативный trading stop предпочтительнее условного
	// ордера - он не требует отдельного ордера и не занимает маржу
	if pos.StopLossPrice > 0 {
		if !stopValidForSide(pos.Side, pos.EntryPrice, pos.StopLossPrice) {
			log.Warnf("stop loss %.8g is on the wrong side of entry %.8g, skipping",
				pos.StopLossPrice, pos.EntryPrice)
			return nil
		}
		t.placeStopLocked(ctx, pos, pos.StopLossPrice, liveQty, posIdx)
	}

	return nil
}

// placeStopLocked размещает стоп: сперва нативный trading stop,
// при отказе - условный reduce-only ордер.
func (t *PositionTracker) placeStopLocked(ctx context.Context, pos *models.Position, stopPrice, qty float64, posIdx int) {
	log := t.log.WithSymbol(pos.Symbol)

	start := time.Now()
	err := t.gateway.SetTradingStop(ctx, pos.Symbol, formatPrice(stopPrice), posIdx)
	OrderPlacementLatency.WithLabelValues("trading_stop").Observe(float64(time.Since(start).Milliseconds()))
	if err == nil {
		pos.StopLossPrice = stopPrice
		pos.StopLossOrderID = tradingStopPrefix + pos.Symbol
		pos.StopLossKind = models.StopKindNative
		log.Infof("trading stop set @ %.8g", stopPrice)
		return
	}
	log.Warnf("trading stop rejected (%v), falling back to conditional order", err)

	start = time.Now()
	order, err := t.gateway.PlaceConditionalStop(ctx, pos.Symbol, closeSide(pos.Side), qty, stopPrice, posIdx)
	OrderPlacementLatency.WithLabelValues("conditional_stop").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		log.Errorf("conditional stop failed, position is unprotected: %v", err)
		t.notify(models.NotificationTypeError, models.SeverityError, pos.Symbol,
			fmt.Sprintf("⚠️ %s: stop loss placement failed, position unprotected", pos.Symbol))
		return
	}
	pos.StopLossPrice = stopPrice
	pos.StopLossOrderID = order.OrderID
	pos.StopLossKind = models.StopKindConditional
	log.Infof("conditional stop placed @ %.8g order=%s", stopPrice, order.OrderID)
}

func targetValidForSide(side string, entry, price float64) bool {
	if side == models.SideLong {
		return price > entry
	}
	return price < entry
}

func stopValidForSide(side string, entry, stop float64) bool {
	if side == models.SideLong {
		return stop < entry
	}
	return stop > entry
}

// ============================================================
// Цикл мониторинга
// ============================================================

// StartMonitoring запускает цикл опроса. Повторный запуск - no-op.
func (t *PositionTracker) StartMonitoring(ctx context.Context) {
	t.monMu.Lock()
	defer t.monMu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.stopCh = make(chan struct{})
	t.wg.Add(1)
	MonitoringActive.Set(1)
	go t.monitorLoop(ctx, t.stopCh)
	t.log.Infof("position monitoring started (interval %s)", t.config.PollInterval)
}

// StopMonitoring останавливает цикл и дожидается завершения
// текущего тика. Повторная остановка - no-op.
func (t *PositionTracker) StopMonitoring() {
	t.monMu.Lock()
	defer t.monMu.Unlock()
	if !t.running {
		return
	}
	close(t.stopCh)
	t.wg.Wait()
	t.running = false
	MonitoringActive.Set(0)
	t.log.Infof("position monitoring stopped")
}

// MonitoringActive сообщает, работает ли цикл мониторинга
func (t *PositionTracker) MonitoringActive() bool {
	t.monMu.Lock()
	defer t.monMu.Unlock()
	return t.running
}

func (t *PositionTracker) monitorLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.safeTick(ctx) {
				// После паники тика делаем паузу: проблема, скорее
				// всего, системная и немедленный повтор ее не решит
				select {
				case <-stopCh:
					return
				case <-ctx.Done():
					return
				case <-time.After(t.config.ErrorBackoff):
				}
			}
		}
	}
}

// safeTick выполняет тик, изолируя панику. Возвращает false при панике.
func (t *PositionTracker) safeTick(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Errorf("monitor tick panic: %v", r)
			ok = false
		}
	}()

	start := time.Now()
	t.tick(ctx)
	PollTickDuration.Observe(time.Since(start).Seconds())
	return true
}

// tick обходит все позиции. Ошибка по одному символу не мешает остальным.
func (t *PositionTracker) tick(ctx context.Context) {
	t.mu.RLock()
	symbols := make([]string, 0, len(t.positions))
	for sym := range t.positions {
		symbols = append(symbols, sym)
	}
	t.mu.RUnlock()
	sort.Strings(symbols)

	for _, sym := range symbols {
		callCtx, cancel := context.WithTimeout(ctx, t.config.CallTimeout)
		if err := t.checkPosition(callCtx, sym); err != nil {
			t.log.WithSymbol(sym).Errorf("position check: %v", err)
		}
		cancel()
	}
}

// checkPosition выполняет один цикл проверки позиции:
// цена -> детект целей (цена + статус ордеров) -> безубыток -> стоп.
func (t *PositionTracker) checkPosition(ctx context.Context, symbol string) error {
	lock := t.symLocks.get(symbol)
	lock.Lock()
	defer lock.Unlock()

	t.mu.RLock()
	pos, exists := t.positions[symbol]
	t.mu.RUnlock()
	if !exists {
		return nil
	}
	log := t.log.WithSymbol(symbol)

	price, err := t.gateway.GetLastPrice(ctx, symbol)
	if err != nil {
		return fmt.Errorf("last price: %w", err)
	}
	pos.LastObservedPrice = price
	pos.PriceCheckCount++

	// Детект целей по цене: работает даже для целей без TP-ордера
	newlyFilled := make([]int, 0, 2)
	for _, idx := range pos.UnfilledTargets() {
		if pos.TargetReached(pos.Targets[idx], price) {
			pos.FilledTargets[idx] = true
			newlyFilled = append(newlyFilled, idx)
			TargetsFilled.WithLabelValues(symbol, "price").Inc()
			log.Infof("target %d reached by price: %.8g (target %.8g)", idx, price, pos.Targets[idx])
		}
	}

	// Детект по статусу TP-ордеров: биржа - источник истины, цена могла
	// коснуться цели между тиками незаметно для нас
	for _, idx := range pos.UnfilledTargets() {
		orderID, ok := pos.TakeProfitOrders[idx]
		if !ok {
			continue
		}
		status, err := t.gateway.GetOrderStatus(ctx, symbol, orderID)
		if err != nil {
			log.Warnf("take profit %d status: %v", idx, err)
			continue
		}
		if status == exchange.OrderStatusFilled {
			pos.FilledTargets[idx] = true
			newlyFilled = append(newlyFilled, idx)
			TargetsFilled.WithLabelValues(symbol, "order_status").Inc()
			log.Infof("target %d filled on exchange (order %s)", idx, orderID)
		}
	}

	if len(newlyFilled) > 0 {
		sort.Ints(newlyFilled)
		t.notify(models.NotificationTypeTargetsHit, models.SeverityInfo, symbol,
			fmt.Sprintf("🎯 %s: targets %s hit @ %.8g", symbol, joinInts(newlyFilled), price))
	}

	// Перенос стопа в безубыток проверяется после объединения обоих
	// каналов детекта: цель могла исполниться любым из них
	if pos.BreakevenTriggered() {
		if err := t.moveToBreakevenLocked(ctx, pos); err != nil {
			log.Errorf("move stop to breakeven: %v", err)
		}
	}

	// Позиция остается на сопровождении и после исполнения всех целей:
	// закрывает ее только срабатывание стопа (к этому моменту
	// перенесенного в безубыток) или команда оператора
	if pos.HasStopLoss() {
		hit, err := t.stopLossHit(ctx, pos)
		if err != nil {
			log.Warnf("stop loss check: %v", err)
		} else if hit {
			t.settleStopLoss(ctx, pos)
		}
	}

	return nil
}

// stopLossHit определяет срабатывание стопа. Нативный trading stop не
// имеет ордера - его исполнение видно по исчезновению позиции на бирже.
// Условный стоп проверяется по статусу ордера.
func (t *PositionTracker) stopLossHit(ctx context.Context, pos *models.Position) (bool, error) {
	switch pos.StopLossKind {
	case models.StopKindNative:
		size, err := t.gateway.GetPositionSize(ctx, pos.Symbol)
		if err != nil {
			return false, err
		}
		return size <= 0, nil
	case models.StopKindConditional:
		status, err := t.gateway.GetOrderStatus(ctx, pos.Symbol, pos.StopLossOrderID)
		if err != nil {
			return false, err
		}
		return status == exchange.OrderStatusFilled, nil
	}
	return false, nil
}

// settleStopLoss учитывает срабатывание стопа: PNL по оставшемуся
// объему, запись в риск-леджер, снятие с сопровождения.
func (t *PositionTracker) settleStopLoss(ctx context.Context, pos *models.Position) {
	log := t.log.WithSymbol(pos.Symbol)

	pnl := utils.CalculatePNL(pos.Side, pos.EntryPrice, pos.StopLossPrice, t.remainingQty(pos))
	if err := t.risk.RecordTrade(ctx, pos.Symbol, pnl); err != nil {
		log.Errorf("record stop loss trade: %v", err)
	}
	StopLossTriggered.WithLabelValues(pos.Symbol).Inc()
	log.Warnf("stop loss hit @ %.8g, pnl %.2f", pos.StopLossPrice, pnl)

	t.notify(models.NotificationTypeStopLossHit, models.SeverityWarn, pos.Symbol,
		fmt.Sprintf("🛑 %s: stop loss hit @ %.8g (PnL %s)", pos.Symbol, pos.StopLossPrice, utils.FormatUSD(pnl)))
	t.removeLocked(pos.Symbol, "stop loss hit")
}

// remainingQty оценивает неисполненный объем: исполненные цели
// забирали равные доли.
func (t *PositionTracker) remainingQty(pos *models.Position) float64 {
	if len(pos.Targets) == 0 {
		return pos.Quantity
	}
	unfilled := len(pos.UnfilledTargets())
	return pos.Quantity * float64(unfilled) / float64(len(pos.Targets))
}

// ============================================================
// Перенос стопа в безубыток
// ============================================================

// MoveSLToBreakeven переносит стоп-лосс на цену входа. Операция
// идемпотентна: перенесенный стоп повторно не трогается.
func (t *PositionTracker) MoveSLToBreakeven(ctx context.Context, symbol string) error {
	lock := t.symLocks.get(symbol)
	lock.Lock()
	defer lock.Unlock()

	t.mu.RLock()
	pos, exists := t.positions[symbol]
	t.mu.RUnlock()
	if !exists {
		return fmt.Errorf("position %s is not tracked", symbol)
	}
	return t.moveToBreakevenLocked(ctx, pos)
}

// moveToBreakevenLocked выполняет cancel-then-replace стопа.
// Флаг StopMovedToBreakeven взводится ТОЛЬКО после успешного
// размещения нового стопа: при неудаче следующий тик повторит попытку.
func (t *PositionTracker) moveToBreakevenLocked(ctx context.Context, pos *models.Position) error {
	if pos.StopMovedToBreakeven {
		return nil
	}
	log := t.log.WithSymbol(pos.Symbol)
	posIdx := positionIdxFor(t.config.PositionMode, pos.Side)

	// Снимаем старый стоп. Способ зависит от вида.
	switch pos.StopLossKind {
	case models.StopKindNative:
		if err := t.gateway.SetTradingStop(ctx, pos.Symbol, "", posIdx); err != nil {
			BreakevenMoves.WithLabelValues(pos.Symbol, "failed").Inc()
			return fmt.Errorf("clear trading stop: %w", err)
		}
	case models.StopKindConditional:
		if err := t.gateway.CancelOrder(ctx, pos.Symbol, pos.StopLossOrderID); err != nil {
			BreakevenMoves.WithLabelValues(pos.Symbol, "failed").Inc()
			return fmt.Errorf("cancel conditional stop: %w", err)
		}
	}
	pos.StopLossKind = models.StopKindNone
	pos.StopLossOrderID = ""

	// Между снятием и установкой позиция не защищена
	newStop := pos.EntryPrice
	err := t.gateway.SetTradingStop(ctx, pos.Symbol, formatPrice(newStop), posIdx)
	if err == nil {
		pos.StopLossPrice = newStop
		pos.StopLossOrderID = tradingStopPrefix + pos.Symbol
		pos.StopLossKind = models.StopKindNative
	} else {
		log.Warnf("native breakeven stop rejected (%v), trying conditional", err)
		order, condErr := t.gateway.PlaceConditionalStop(ctx, pos.Symbol, closeSide(pos.Side),
			t.remainingQty(pos), newStop, posIdx)
		if condErr != nil {
			BreakevenMoves.WithLabelValues(pos.Symbol, "failed").Inc()
			log.Errorf("position left without stop after breakeven attempt: %v", condErr)
			t.notify(models.NotificationTypeError, models.SeverityError, pos.Symbol,
				fmt.Sprintf("⚠️ %s: breakeven move failed, position unprotected", pos.Symbol))
			return fmt.Errorf("place breakeven stop: %w", condErr)
		}
		pos.StopLossPrice = newStop
		pos.StopLossOrderID = order.OrderID
		pos.StopLossKind = models.StopKindConditional
	}

	pos.StopMovedToBreakeven = true
	BreakevenMoves.WithLabelValues(pos.Symbol, "success").Inc()
	log.Infof("stop loss moved to breakeven @ %.8g", newStop)
	t.notify(models.NotificationTypeBreakeven, models.SeverityInfo, pos.Symbol,
		fmt.Sprintf("⚖️ %s: stop loss moved to breakeven @ %.8g", pos.Symbol, newStop))
	return nil
}

// ============================================================
// Снятие с сопровождения и сводки
// ============================================================

// RemovePosition снимает позицию с сопровождения. При cancelOrders
// отменяет на бирже TP-ордера и стоп. Саму позицию на бирже не трогает.
func (t *PositionTracker) RemovePosition(ctx context.Context, symbol string, cancelOrders bool) error {
	lock := t.symLocks.get(symbol)
	lock.Lock()
	defer lock.Unlock()

	t.mu.RLock()
	pos, exists := t.positions[symbol]
	t.mu.RUnlock()
	if !exists {
		return fmt.Errorf("position %s is not tracked", symbol)
	}
	log := t.log.WithSymbol(symbol)

	if cancelOrders {
		for idx, orderID := range pos.TakeProfitOrders {
			if pos.FilledTargets[idx] {
				continue
			}
			if err := t.gateway.CancelOrder(ctx, symbol, orderID); err != nil {
				log.Warnf("cancel take profit %d: %v", idx, err)
			}
		}
		posIdx := positionIdxFor(t.config.PositionMode, pos.Side)
		switch pos.StopLossKind {
		case models.StopKindNative:
			if err := t.gateway.SetTradingStop(ctx, symbol, "", posIdx); err != nil {
				log.Warnf("clear trading stop: %v", err)
			}
		case models.StopKindConditional:
			if err := t.gateway.CancelOrder(ctx, symbol, pos.StopLossOrderID); err != nil {
				log.Warnf("cancel conditional stop: %v", err)
			}
		}
	}

	t.removeLocked(symbol, "removed by operator")
	return nil
}

// removeLocked удаляет позицию из карты и шлет уведомление.
// Вызывается под символьным локом.
func (t *PositionTracker) removeLocked(symbol, reason string) {
	t.mu.Lock()
	delete(t.positions, symbol)
	OpenPositions.Set(float64(len(t.positions)))
	t.mu.Unlock()

	t.log.WithSymbol(symbol).Infof("position removed: %s", reason)
	t.notify(models.NotificationTypePositionRemoved, models.SeverityInfo, symbol,
		fmt.Sprintf("📤 %s: position removed (%s)", symbol, reason))
}

// GetPosition возвращает копию позиции по символу. Поля позиции
// мутирует цикл опроса под символьным локом, поэтому читаем под ним же
// и отдаем снимок, а не живой указатель.
func (t *PositionTracker) GetPosition(symbol string) (*models.Position, bool) {
	lock := t.symLocks.get(symbol)
	lock.Lock()
	defer lock.Unlock()

	t.mu.RLock()
	pos, ok := t.positions[symbol]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return pos.Clone(), true
}

// GetPositionsSummary возвращает сводку по всем позициям для дашборда.
// Каждая строка читается под символьным локом позиции: HTTP-поток не
// должен видеть позицию посреди мутации тика (порядок захвата тот же,
// что в checkPosition - символьный лок, затем t.mu).
func (t *PositionTracker) GetPositionsSummary() *models.PositionsSummary {
	t.mu.RLock()
	symbols := make([]string, 0, len(t.positions))
	for symbol := range t.positions {
		symbols = append(symbols, symbol)
	}
	t.mu.RUnlock()
	sort.Strings(symbols)

	summaries := make([]models.PositionSummary, 0, len(symbols))
	for _, symbol := range symbols {
		if entry, ok := t.summarizePosition(symbol); ok {
			summaries = append(summaries, entry)
		}
	}

	return &models.PositionsSummary{
		MonitoringActive: t.MonitoringActive(),
		Count:            len(summaries),
		Positions:        summaries,
	}
}

// summarizePosition строит строку сводки под символьным локом.
// Позиция могла исчезнуть между снимком символов и захватом лока.
func (t *PositionTracker) summarizePosition(symbol string) (models.PositionSummary, bool) {
	lock := t.symLocks.get(symbol)
	lock.Lock()
	defer lock.Unlock()

	t.mu.RLock()
	pos, ok := t.positions[symbol]
	t.mu.RUnlock()
	if !ok {
		return models.PositionSummary{}, false
	}

	filled := 0
	for _, done := range pos.FilledTargets {
		if done {
			filled++
		}
	}
	return models.PositionSummary{
		Symbol:               pos.Symbol,
		Side:                 pos.Side,
		EntryPrice:           pos.EntryPrice,
		Quantity:             pos.Quantity,
		TargetsTotal:         len(pos.Targets),
		TargetsFilled:        filled,
		StopLossPrice:        pos.StopLossPrice,
		StopMovedToBreakeven: pos.StopMovedToBreakeven,
		LastObservedPrice:    pos.LastObservedPrice,
		CreatedAt:            pos.CreatedAt,
	}, true
}

func (t *PositionTracker) notify(notifType, severity, symbol, message string) {
	tryEnqueueNotification(t.notificationChan, models.NewNotification(notifType, severity, symbol, message))
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
