package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах
// - Анализ поведения риск-гейта и мониторинга в production

// ============ Счётчики сделок ============

// TradesTotal - исходы обработки сигналов
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Total number of processed signals by outcome",
	},
	[]string{"symbol", "outcome"}, // outcome: executed, blocked, failed
)

// TradeBlocks - отказы риск-гейта по причинам
var TradeBlocks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "risk",
		Name:      "trade_blocks_total",
		Help:      "Number of trades blocked by the risk gate",
	},
	[]string{"check"}, // margin, cooldown, daily_limit, weekly_limit, consecutive_losses, internal
)

// PnlTotal - суммарный реализованный PNL в USDT.
// Gauge, а не Counter: убыточные сделки уменьшают значение.
var PnlTotal = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "trading",
		Name:      "pnl_total_usdt",
		Help:      "Total realized PnL in USDT",
	},
)

// ============ Счётчики жизненного цикла позиций ============

// TargetsFilled - достигнутые цели тейк-профита
var TargetsFilled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "positions",
		Name:      "targets_filled_total",
		Help:      "Number of take profit targets filled",
	},
	[]string{"symbol", "detection"}, // detection: price, order_status
)

// BreakevenMoves - переносы стопа в безубыток
var BreakevenMoves = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "positions",
		Name:      "breakeven_moves_total",
		Help:      "Number of stop loss relocations to breakeven",
	},
	[]string{"symbol", "result"}, // result: success, failed
)

// StopLossTriggered - срабатывания стоп-лосса
var StopLossTriggered = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "risk",
		Name:      "stop_loss_triggered_total",
		Help:      "Number of stop loss fills",
	},
	[]string{"symbol"},
)

// ============ Метрики состояния ============

// OpenPositions - текущее количество сопровождаемых позиций
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "positions",
		Name:      "open_positions",
		Help:      "Current number of tracked positions",
	},
)

// ConsecutiveLosses - текущая серия убыточных сделок
var ConsecutiveLosses = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "risk",
		Name:      "consecutive_losses",
		Help:      "Current consecutive loss streak",
	},
)

// DailyPnl - PNL за текущий день
var DailyPnl = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "risk",
		Name:      "daily_pnl_usdt",
		Help:      "Realized PnL for the current day in USDT",
	},
)

// MonitoringActive - состояние цикла мониторинга (1=работает)
var MonitoringActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "positions",
		Name:      "monitoring_active",
		Help:      "Whether the position monitoring loop is running (1=yes)",
	},
)

// ============ Метрики производительности ============

// PollTickDuration - длительность одного тика мониторинга
var PollTickDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "tradebot",
		Subsystem: "positions",
		Name:      "poll_tick_duration_seconds",
		Help:      "Duration of one monitoring poll tick",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
)

// OrderPlacementLatency - время размещения ордера на бирже
var OrderPlacementLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradebot",
		Subsystem: "exchange",
		Name:      "order_placement_latency_ms",
		Help:      "Time to place an order on the exchange in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"kind"}, // market, limit, conditional_stop, trading_stop
)

// BufferOverflows - переполнения буферов каналов
var BufferOverflows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "trading",
		Name:      "buffer_overflows_total",
		Help:      "Number of channel buffer overflows (events dropped)",
	},
	[]string{"buffer"}, // notification
)

// ============ Вспомогательные функции ============

// RecordTradeOutcome записывает исход обработки сигнала
func RecordTradeOutcome(symbol, outcome string) {
	TradesTotal.WithLabelValues(symbol, outcome).Inc()
}

// RecordTradeBlock записывает отказ риск-гейта
func RecordTradeBlock(check string) {
	TradeBlocks.WithLabelValues(check).Inc()
}

// RecordRealizedPnl записывает реализованный PNL
func RecordRealizedPnl(pnl float64) {
	if pnl != 0 {
		PnlTotal.Add(pnl)
	}
}

// RecordBufferOverflow записывает переполнение буфера
func RecordBufferOverflow(bufferName string) {
	BufferOverflows.WithLabelValues(bufferName).Inc()
}
