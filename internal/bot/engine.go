package bot

import (
	"context"
	"sync"
	"time"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// housekeepingInterval - период очистки устаревших записей леджера
const housekeepingInterval = time.Hour

// signalExecuteTimeout - бюджет на исполнение одного сигнала из
// асинхронного источника (баланс, гейт, вход)
const signalExecuteTimeout = 30 * time.Second

// SignalSource - асинхронный источник торговых сигналов: пересланные
// сообщения канала, очередь, тестовая заглушка. Источник закрывает
// канал при своей остановке.
type SignalSource interface {
	Signals() <-chan *models.Signal
}

// Engine связывает риск-гейт, исполнитель и трекер в единый
// торговый конвейер и владеет их жизненным циклом.
//
// Сигнал проходит путь: источник -> Engine.ExecuteSignal ->
// SignalExecutor (гейт, размер, ордер) -> PositionTracker
// (TP/SL, мониторинг до закрытия).
type Engine struct {
	risk     *RiskGate
	executor *SignalExecutor
	tracker  *PositionTracker

	mu      sync.Mutex
	sources []SignalSource
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	log *utils.Logger
}

// NewEngine создает торговый движок
func NewEngine(risk *RiskGate, executor *SignalExecutor, tracker *PositionTracker, log *utils.Logger) *Engine {
	return &Engine{
		risk:     risk,
		executor: executor,
		tracker:  tracker,
		log:      log,
	}
}

// Start запускает мониторинг позиций и фоновую очистку леджера.
// Повторный запуск - no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.tracker.StartMonitoring(ctx)

	e.wg.Add(1)
	go e.housekeepingLoop(ctx)

	for _, src := range e.sources {
		e.wg.Add(1)
		go e.consumeSignals(ctx, src)
	}

	e.log.Infof("trading engine started")
}

// AddSignalSource регистрирует источник сигналов. Вызывается до
// Start: источники, добавленные на работающем движке, подхватятся
// только при следующем запуске.
func (e *Engine) AddSignalSource(src SignalSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = append(e.sources, src)
}

// consumeSignals читает сигналы источника и проводит каждый через
// конвейер. Завершается при остановке движка или закрытии канала.
func (e *Engine) consumeSignals(ctx context.Context, src SignalSource) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-src.Signals():
			if !ok {
				return
			}
			execCtx, cancel := context.WithTimeout(ctx, signalExecuteTimeout)
			result := e.ExecuteSignal(execCtx, sig)
			cancel()
			e.log.WithSymbol(sig.Symbol).Infof("source signal processed: %s", result.Outcome)
		}
	}
}

// Stop останавливает движок: мониторинг дорабатывает текущий тик.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false

	e.cancel()
	e.tracker.StopMonitoring()
	e.wg.Wait()

	e.log.Infof("trading engine stopped")
}

// housekeepingLoop периодически удаляет устаревшие дневные и
// недельные записи риск-леджера.
func (e *Engine) housekeepingLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.risk.ResetDailyLimits(ctx)
			e.risk.ResetWeeklyLimits(ctx)
		}
	}
}

// ExecuteSignal проводит сигнал через конвейер. При успешном входе
// позиция передается трекеру: TP/SL размещаются асинхронно после
// паузы, результат возвращается сразу.
func (e *Engine) ExecuteSignal(ctx context.Context, sig *models.Signal) *ExecutionResult {
	result := e.executor.Execute(ctx, sig)
	if result.Outcome != OutcomeExecuted || result.Position == nil {
		return result
	}

	e.wg.Add(1)
	go func(pos *models.Position) {
		defer e.wg.Done()
		// Отдельный контекст: HTTP-запрос оператора уже завершен,
		// а TP/SL должны разместиться в любом случае
		trackCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := e.tracker.Track(trackCtx, pos); err != nil {
			e.log.WithSymbol(pos.Symbol).Errorf("track position: %v", err)
		}
	}(result.Position)

	return result
}

// MoveSLToBreakeven переносит стоп позиции в безубыток по команде оператора
func (e *Engine) MoveSLToBreakeven(ctx context.Context, symbol string) error {
	return e.tracker.MoveSLToBreakeven(ctx, symbol)
}

// RemovePosition снимает позицию с сопровождения по команде оператора
func (e *Engine) RemovePosition(ctx context.Context, symbol string, cancelOrders bool) error {
	return e.tracker.RemovePosition(ctx, symbol, cancelOrders)
}

// StartMonitoring включает цикл мониторинга
func (e *Engine) StartMonitoring() {
	e.tracker.StartMonitoring(context.Background())
}

// StopMonitoring выключает цикл мониторинга, дожидаясь текущего тика
func (e *Engine) StopMonitoring() {
	e.tracker.StopMonitoring()
}

// GetPositionsSummary возвращает сводку позиций
func (e *Engine) GetPositionsSummary() *models.PositionsSummary {
	return e.tracker.GetPositionsSummary()
}

// GetRiskStats возвращает сводку риск-леджера
func (e *Engine) GetRiskStats() *models.RiskStats {
	return e.risk.Stats()
}
