package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

func newTestTracker(t *testing.T, gw exchange.Gateway) (*PositionTracker, *RiskGate) {
	t.Helper()
	gate := newTestGate(t, nil)
	cfg := TrackerConfig{
		PositionMode: PositionModeOneWay,
		PollInterval: 10 * time.Millisecond,
		SetupDelay:   0, // в тестах пауза перед TP/SL не нужна
		CallTimeout:  time.Second,
		ErrorBackoff: 10 * time.Millisecond,
	}
	return NewPositionTracker(gw, gate, cfg, nil, testLogger()), gate
}

// trackedPosition создает сигнал, позицию и регистрирует ее в трекере
func trackedPosition(t *testing.T, tracker *PositionTracker, gw *mockGateway, sig *models.Signal, qty float64) *models.Position {
	t.Helper()
	gw.setPositionSize(sig.Symbol, qty)
	pos := models.NewPosition(sig, "ENTRY-1", qty, 1)
	if err := tracker.Track(context.Background(), pos); err != nil {
		t.Fatalf("регистрация позиции: %v", err)
	}
	return pos
}

func TestTracker_TrackPlacesTPAndNativeStop(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)

	pos := trackedPosition(t, tracker, gw, testSignal(), 1.0)

	// Два reduce-only лимитника по целям
	limits := gw.limitOrderCalls()
	if len(limits) != 2 {
		t.Fatalf("ожидали 2 TP-ордера, получили %d", len(limits))
	}
	for _, o := range limits {
		if !o.ReduceOnly {
			t.Errorf("TP-ордер должен быть reduce-only")
		}
		if o.Side != exchange.SideSell {
			t.Errorf("закрытие long - продажа, получили %s", o.Side)
		}
	}
	// Объем поделен поровну
	if !utils.AlmostEqual(limits[0].Qty, 0.5, 1e-9) || !utils.AlmostEqual(limits[1].Qty, 0.5, 1e-9) {
		t.Errorf("ожидали равное разбиение 0.5/0.5, получили %v/%v", limits[0].Qty, limits[1].Qty)
	}

	// Нативный стоп с сентинелом вместо id ордера
	stops := gw.tradingStopCalls()
	if len(stops) != 1 || stops[0].StopPrice != "95" {
		t.Fatalf("ожидали trading stop @95, получили %+v", stops)
	}
	if pos.StopLossKind != models.StopKindNative {
		t.Errorf("ожидали нативный стоп, получили %q", pos.StopLossKind)
	}
	if pos.StopLossOrderID != "TRADING_STOP_BTCUSDT" {
		t.Errorf("неверный сентинел стопа: %s", pos.StopLossOrderID)
	}
}

func TestTracker_ConditionalStopFallback(t *testing.T) {
	gw := newMockGateway()
	gw.tradingStopErr = errors.New("not supported")
	tracker, _ := newTestTracker(t, gw)

	pos := trackedPosition(t, tracker, gw, testSignal(), 1.0)

	if pos.StopLossKind != models.StopKindConditional {
		t.Fatalf("ожидали условный стоп, получили %q", pos.StopLossKind)
	}
	if len(gw.conditionalStops) != 1 {
		t.Fatalf("ожидали 1 условный стоп, получили %d", len(gw.conditionalStops))
	}
	if strings.HasPrefix(pos.StopLossOrderID, tradingStopPrefix) {
		t.Error("условный стоп должен иметь настоящий id ордера")
	}
}

func TestTracker_WrongSideTargetLegSkipped(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)

	sig := testSignal()
	sig.Targets = map[int]float64{1: 110, 2: 90} // вторая цель ниже входа long

	trackedPosition(t, tracker, gw, sig, 1.0)

	limits := gw.limitOrderCalls()
	if len(limits) != 1 {
		t.Fatalf("ожидали 1 TP-ордер (некорректная нога отброшена), получили %d", len(limits))
	}
	if limits[0].Price != 110 {
		t.Errorf("остаться должна цель 110, получили %v", limits[0].Price)
	}
}

func TestTracker_WrongSideStopSkipped(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)

	sig := testSignal()
	sig.StopLoss = 120 // стоп выше входа long

	pos := trackedPosition(t, tracker, gw, sig, 1.0)

	if pos.HasStopLoss() {
		t.Error("стоп с неправильной стороны не должен размещаться")
	}
	if len(gw.tradingStopCalls()) != 0 {
		t.Error("trading stop не должен вызываться")
	}
}

func TestTracker_NoLivePositionDropsTracking(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)

	// Размер на бирже 0: вход не исполнился
	pos := models.NewPosition(testSignal(), "ENTRY-1", 1.0, 1)
	if err := tracker.Track(context.Background(), pos); err == nil {
		t.Fatal("ожидали ошибку при отсутствии позиции на бирже")
	}
	if _, ok := tracker.GetPosition("BTCUSDT"); ok {
		t.Error("несуществующая позиция не должна остаться на сопровождении")
	}
}

func TestTracker_DuplicateTrackRejected(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)

	trackedPosition(t, tracker, gw, testSignal(), 1.0)

	dup := models.NewPosition(testSignal(), "ENTRY-2", 1.0, 1)
	if err := tracker.Track(context.Background(), dup); err == nil {
		t.Fatal("повторная регистрация символа должна отклоняться")
	}
}

func TestTracker_PriceDetectionFillsTarget(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)
	ctx := context.Background()

	pos := trackedPosition(t, tracker, gw, testSignal(), 1.0)

	gw.setPrice("BTCUSDT", 106) // выше цели 1 (105), ниже цели 2 (112)
	if err := tracker.checkPosition(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("проверка позиции: %v", err)
	}

	if !pos.FilledTargets[1] {
		t.Error("цель 1 должна детектироваться по цене")
	}
	if pos.FilledTargets[2] {
		t.Error("цель 2 еще не достигнута")
	}
	if pos.LastObservedPrice != 106 {
		t.Errorf("последняя цена не записана: %v", pos.LastObservedPrice)
	}
}

func TestTracker_OrderStatusDetectionFillsTarget(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)
	ctx := context.Background()

	pos := trackedPosition(t, tracker, gw, testSignal(), 1.0)

	// Цена ниже цели, но TP-ордер исполнен на бирже (шпилька между тиками)
	gw.setPrice("BTCUSDT", 101)
	gw.setOrderStatus(pos.TakeProfitOrders[1], exchange.OrderStatusFilled)

	if err := tracker.checkPosition(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("проверка позиции: %v", err)
	}
	if !pos.FilledTargets[1] {
		t.Error("цель 1 должна детектироваться по статусу ордера")
	}
}

func TestTracker_FilledTargetsMonotonic(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)
	ctx := context.Background()

	pos := trackedPosition(t, tracker, gw, testSignal(), 1.0)

	gw.setPrice("BTCUSDT", 106)
	tracker.checkPosition(ctx, "BTCUSDT")
	if !pos.FilledTargets[1] {
		t.Fatal("цель 1 не детектирована")
	}

	// Откат цены не снимает исполненность
	gw.setPrice("BTCUSDT", 96)
	tracker.checkPosition(ctx, "BTCUSDT")
	if !pos.FilledTargets[1] {
		t.Error("исполненная цель должна оставаться исполненной после отката цены")
	}
}

func TestTracker_BreakevenAfterTriggerTarget(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)
	ctx := context.Background()

	pos := trackedPosition(t, tracker, gw, testSignal(), 1.0)
	stopsBefore := len(gw.tradingStopCalls())

	gw.setPrice("BTCUSDT", 106) // цель 1 достигнута
	if err := tracker.checkPosition(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("проверка позиции: %v", err)
	}

	if !pos.StopMovedToBreakeven {
		t.Fatal("стоп должен переехать в безубыток после цели 1")
	}
	if pos.StopLossPrice != 100 {
		t.Errorf("стоп должен стоять на цене входа 100, получили %v", pos.StopLossPrice)
	}

	// cancel (пустая цена) + установка нового стопа
	stops := gw.tradingStopCalls()[stopsBefore:]
	if len(stops) != 2 {
		t.Fatalf("ожидали 2 вызова trading stop (снятие + установка), получили %d", len(stops))
	}
	if stops[0].StopPrice != "" {
		t.Errorf("первый вызов должен снимать стоп пустой ценой, получили %q", stops[0].StopPrice)
	}
	if stops[1].StopPrice != "100" {
		t.Errorf("второй вызов должен ставить стоп @100, получили %q", stops[1].StopPrice)
	}
}

func TestTracker_BreakevenIdempotent(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)
	ctx := context.Background()

	trackedPosition(t, tracker, gw, testSignal(), 1.0)

	gw.setPrice("BTCUSDT", 106)
	tracker.checkPosition(ctx, "BTCUSDT")

	calls := len(gw.tradingStopCalls())
	// Повторный явный вызов ничего не делает
	if err := tracker.MoveSLToBreakeven(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("повторный перенос должен быть no-op: %v", err)
	}
	if len(gw.tradingStopCalls()) != calls {
		t.Error("перенесенный стоп не должен трогаться повторно")
	}
}

func TestTracker_BreakevenFlagOnlyOnSuccess(t *testing.T) {
	gw := newMockGateway()
	gw.tradingStopErr = errors.New("not supported") // изначально условный стоп
	tracker, _ := newTestTracker(t, gw)
	ctx := context.Background()

	pos := trackedPosition(t, tracker, gw, testSignal(), 1.0)
	if pos.StopLossKind != models.StopKindConditional {
		t.Fatalf("нужен условный стоп для сценария, получили %q", pos.StopLossKind)
	}

	// Отмена старого стопа пройдет, а размещение нового - нет
	gw.mu.Lock()
	gw.conditionalErr = errors.New("rejected")
	gw.mu.Unlock()

	gw.setPrice("BTCUSDT", 106)
	tracker.checkPosition(ctx, "BTCUSDT")

	if pos.StopMovedToBreakeven {
		t.Error("флаг переноса не должен взводиться при неудаче размещения")
	}
	if pos.HasStopLoss() {
		t.Error("старый стоп снят, нового нет - позиция без стопа")
	}

	// Следующий тик после восстановления биржи доводит перенос
	gw.mu.Lock()
	gw.conditionalErr = nil
	gw.mu.Unlock()
	tracker.checkPosition(ctx, "BTCUSDT")
	if !pos.StopMovedToBreakeven {
		t.Error("перенос должен повториться и завершиться на следующем тике")
	}
}

func TestTracker_NativeStopHitSettlesPosition(t *testing.T) {
	gw := newMockGateway()
	tracker, gate := newTestTracker(t, gw)
	ctx := context.Background()

	trackedPosition(t, tracker, gw, testSignal(), 1.0)

	// Цена у стопа, позиция на бирже исчезла - нативный стоп сработал
	gw.setPrice("BTCUSDT", 94)
	gw.setPositionSize("BTCUSDT", 0)
	if err := tracker.checkPosition(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("проверка позиции: %v", err)
	}

	if _, ok := tracker.GetPosition("BTCUSDT"); ok {
		t.Error("позиция должна сниматься с сопровождения после стопа")
	}
	// Убыток (95-100)*1.0 = -5 учтен в леджере
	stats := gate.Stats()
	if !utils.AlmostEqual(stats.DailyPnL, -5, 1e-9) {
		t.Errorf("ожидали daily pnl -5, получили %v", stats.DailyPnL)
	}
	if stats.ConsecutiveLosses != 1 {
		t.Errorf("стоп должен увеличивать серию убытков, получили %d", stats.ConsecutiveLosses)
	}
}

func TestTracker_ConditionalStopHitSettlesPosition(t *testing.T) {
	gw := newMockGateway()
	gw.tradingStopErr = errors.New("not supported")
	tracker, gate := newTestTracker(t, gw)
	ctx := context.Background()

	pos := trackedPosition(t, tracker, gw, testSignal(), 1.0)

	gw.setPrice("BTCUSDT", 94)
	gw.setOrderStatus(pos.StopLossOrderID, exchange.OrderStatusFilled)
	tracker.checkPosition(ctx, "BTCUSDT")

	if _, ok := tracker.GetPosition("BTCUSDT"); ok {
		t.Error("позиция должна сниматься после исполнения условного стопа")
	}
	if gate.Stats().DailyPnL >= 0 {
		t.Errorf("ожидали убыток в леджере, получили %v", gate.Stats().DailyPnL)
	}
}

func TestTracker_AllTargetsFilledKeepsTracking(t *testing.T) {
	// Исполнение всех целей не закрывает позицию: с сопровождения
	// ее снимает только срабатывание стопа или команда оператора
	gw := newMockGateway()
	tracker, gate := newTestTracker(t, gw)
	ctx := context.Background()

	pos := trackedPosition(t, tracker, gw, testSignal(), 1.0)

	gw.setPrice("BTCUSDT", 125) // выше обеих целей 105 и 112
	tracker.checkPosition(ctx, "BTCUSDT")

	if !pos.FilledTargets[1] || !pos.FilledTargets[2] {
		t.Fatalf("обе цели должны исполниться, получили %v", pos.FilledTargets)
	}
	if _, ok := tracker.GetPosition("BTCUSDT"); !ok {
		t.Error("позиция должна оставаться на сопровождении после исполнения всех целей")
	}
	// Результат фиксируется только при закрытии стопом
	if trades := gate.Stats().RecentTrades; len(trades) != 0 {
		t.Errorf("сделка не должна записываться в леджер до срабатывания стопа, получили %d", len(trades))
	}
	// Стоп переехал в безубыток и продолжает защищать позицию
	if !pos.StopMovedToBreakeven || pos.StopLossPrice != 100 {
		t.Errorf("стоп должен стоять в безубытке, получили %v (moved=%v)", pos.StopLossPrice, pos.StopMovedToBreakeven)
	}
}

func TestTracker_WinningCycle(t *testing.T) {
	// Полный жизненный цикл: вход 100, стоп 95, цели 105/112,
	// цена идет 95 -> 105 -> 112, безубыток после первой цели
	gw := newMockGateway()
	tracker, gate := newTestTracker(t, gw)
	ctx := context.Background()

	pos := trackedPosition(t, tracker, gw, testSignal(), 1.0)

	// Тик 1: цена у стопа, но позиция жива - ничего не происходит
	gw.setPrice("BTCUSDT", 95.5)
	tracker.checkPosition(ctx, "BTCUSDT")
	if len(pos.FilledTargets) != 0 || pos.StopMovedToBreakeven {
		t.Fatal("до целей состояние не должно меняться")
	}

	// Тик 2: цель 1, стоп в безубыток
	gw.setPrice("BTCUSDT", 105)
	tracker.checkPosition(ctx, "BTCUSDT")
	if !pos.FilledTargets[1] {
		t.Fatal("цель 1 должна исполниться")
	}
	if !pos.StopMovedToBreakeven || pos.StopLossPrice != 100 {
		t.Fatal("стоп должен стоять в безубытке после цели 1")
	}

	// Тик 3: цель 2. Позиция остается на сопровождении - исполнение
	// последней цели не закрывает ее
	gw.setPrice("BTCUSDT", 112)
	tracker.checkPosition(ctx, "BTCUSDT")
	if !pos.FilledTargets[2] {
		t.Fatal("цель 2 должна исполниться")
	}
	if _, ok := tracker.GetPosition("BTCUSDT"); !ok {
		t.Fatal("позиция должна оставаться на сопровождении после последней цели")
	}

	// Тик 4: биржа закрыла остаток по безубыточному стопу -
	// только теперь позиция снимается
	gw.setPositionSize("BTCUSDT", 0)
	tracker.checkPosition(ctx, "BTCUSDT")
	if _, ok := tracker.GetPosition("BTCUSDT"); ok {
		t.Fatal("позиция должна закрыться после срабатывания стопа")
	}
	if gate.Stats().ConsecutiveLosses != 0 {
		t.Errorf("прибыльный цикл не должен увеличивать серию убытков")
	}
}

func TestTracker_RemovePositionCancelsOrders(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)
	ctx := context.Background()

	pos := trackedPosition(t, tracker, gw, testSignal(), 1.0)
	tpOrder := pos.TakeProfitOrders[1]

	if err := tracker.RemovePosition(ctx, "BTCUSDT", true); err != nil {
		t.Fatalf("снятие позиции: %v", err)
	}
	if _, ok := tracker.GetPosition("BTCUSDT"); ok {
		t.Error("позиция должна удалиться")
	}

	found := false
	for _, id := range gw.cancelledOrders {
		if id == tpOrder {
			found = true
		}
	}
	if !found {
		t.Error("TP-ордера должны отменяться при снятии с cancelOrders")
	}
	// Нативный стоп снят пустой ценой
	stops := gw.tradingStopCalls()
	if stops[len(stops)-1].StopPrice != "" {
		t.Error("нативный стоп должен сниматься при удалении позиции")
	}
}

func TestTracker_RemoveUnknownPosition(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)

	if err := tracker.RemovePosition(context.Background(), "ETHUSDT", false); err == nil {
		t.Fatal("снятие неизвестной позиции должно возвращать ошибку")
	}
}

func TestTracker_StartStopMonitoring(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)

	trackedPosition(t, tracker, gw, testSignal(), 1.0)
	gw.setPrice("BTCUSDT", 101)

	tracker.StartMonitoring(context.Background())
	if !tracker.MonitoringActive() {
		t.Fatal("мониторинг должен быть активен после запуска")
	}
	// Повторный запуск - no-op, не должен паниковать
	tracker.StartMonitoring(context.Background())

	// Даем циклу сделать несколько тиков
	time.Sleep(50 * time.Millisecond)

	tracker.StopMonitoring()
	if tracker.MonitoringActive() {
		t.Fatal("мониторинг должен быть остановлен")
	}
	// Повторная остановка - no-op
	tracker.StopMonitoring()

	pos, ok := tracker.GetPosition("BTCUSDT")
	if !ok {
		t.Fatal("позиция пропала во время мониторинга")
	}
	if pos.PriceCheckCount == 0 {
		t.Error("цикл мониторинга не сделал ни одной проверки")
	}
}

func TestTracker_SummaryReflectsState(t *testing.T) {
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)
	ctx := context.Background()

	trackedPosition(t, tracker, gw, testSignal(), 1.0)
	gw.setPrice("BTCUSDT", 106)
	tracker.checkPosition(ctx, "BTCUSDT")

	summary := tracker.GetPositionsSummary()
	if summary.Count != 1 || len(summary.Positions) != 1 {
		t.Fatalf("ожидали 1 позицию в сводке, получили %d", summary.Count)
	}
	ps := summary.Positions[0]
	if ps.Symbol != "BTCUSDT" || ps.TargetsTotal != 2 || ps.TargetsFilled != 1 {
		t.Errorf("неверная сводка: %+v", ps)
	}
	if !ps.StopMovedToBreakeven {
		t.Error("сводка должна отражать перенос стопа")
	}
	if summary.MonitoringActive {
		t.Error("мониторинг не запускался")
	}
}

func TestTracker_SummaryConcurrentWithTicks(t *testing.T) {
	// HTTP-читатели и цикл опроса работают с одной позицией
	// одновременно: сводка и снимок позиции не должны видеть
	// состояние посреди мутации тика
	gw := newMockGateway()
	tracker, _ := newTestTracker(t, gw)
	ctx := context.Background()

	trackedPosition(t, tracker, gw, testSignal(), 1.0)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		prices := []float64{98, 103, 106, 110, 113}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			gw.setPrice("BTCUSDT", prices[i%len(prices)])
			tracker.checkPosition(ctx, "BTCUSDT")
		}
	}()

	for i := 0; i < 200; i++ {
		summary := tracker.GetPositionsSummary()
		if summary.Count == 1 {
			ps := summary.Positions[0]
			if ps.TargetsFilled < 0 || ps.TargetsFilled > ps.TargetsTotal {
				t.Errorf("несогласованная сводка: %d из %d целей", ps.TargetsFilled, ps.TargetsTotal)
			}
		}
		if pos, ok := tracker.GetPosition("BTCUSDT"); ok {
			// снимок независим от живой позиции
			pos.FilledTargets[99] = true
		}
	}
	close(stop)
	wg.Wait()

	if pos, ok := tracker.GetPosition("BTCUSDT"); ok && pos.FilledTargets[99] {
		t.Error("мутация снимка не должна попадать в отслеживаемую позицию")
	}
}
