package bot

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// LedgerStore - durable хранилище риск-леджера.
// Save записывает леджер целиком одной операцией: частичных записей нет.
type LedgerStore interface {
	Load(ctx context.Context) (*models.RiskLedger, error)
	Save(ctx context.Context, ledger *models.RiskLedger) error
}

// TradeLog - append-only аудиторский журнал сделок. В отличие от
// ограниченной истории в леджере хранит все сделки без срезки.
type TradeLog interface {
	Insert(ctx context.Context, record models.TradeRecord) error
}

// MemoryLedgerStore - хранилище в памяти для demo-режима и тестов.
type MemoryLedgerStore struct {
	mu     sync.Mutex
	ledger *models.RiskLedger
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{}
}

func (s *MemoryLedgerStore) Load(ctx context.Context) (*models.RiskLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return models.NewRiskLedger(), nil
	}
	return s.ledger.Clone(), nil
}

func (s *MemoryLedgerStore) Save(ctx context.Context, ledger *models.RiskLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = ledger.Clone()
	return nil
}

// RiskConfig - лимиты риск-гейта
type RiskConfig struct {
	DailyLossLimit       float64       // максимальный дневной убыток, USDT
	WeeklyLossLimit      float64       // максимальный недельный убыток, USDT
	MaxConsecutiveLosses int           // серия убытков до кулдауна
	MinMarginLevel       float64       // минимальный уровень маржи (wallet/margin)
	Cooldown             time.Duration // пауза после серии убытков
}

// DefaultRiskConfig возвращает конфигурацию по умолчанию
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		DailyLossLimit:       500,
		WeeklyLossLimit:      2000,
		MaxConsecutiveLosses: 3,
		MinMarginLevel:       3.0,
		Cooldown:             time.Hour,
	}
}

// RiskGate - стейтфул риск-контроль перед каждой сделкой
//
// Функции:
// - Учет дневного/недельного PNL с персистентным леджером
// - Кулдаун после серии убыточных сделок (с эскалацией при повторной попытке)
// - Проверка уровня маржи с журналом алертов
// - Ограниченная история сделок для дашборда
//
// Все публичные операции возвращают явный результат и не паникуют:
// любой внутренний сбой трактуется как "торговля не верифицируема"
// и закрывает гейт (fail closed).
type RiskGate struct {
	mu     sync.Mutex
	ledger *models.RiskLedger

	store    LedgerStore
	config   RiskConfig
	tradeLog TradeLog // опционален, best effort

	notificationChan chan<- *models.Notification
	log              *utils.Logger
}

// SetTradeLog подключает аудиторский журнал сделок. Сбой записи в
// журнал логируется, но на учет в леджере не влияет.
func (rg *RiskGate) SetTradeLog(log TradeLog) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.tradeLog = log
}

// NewRiskGate создает гейт и загружает леджер из хранилища.
// Недоступность хранилища на старте - единственная фатальная ошибка.
func NewRiskGate(ctx context.Context, store LedgerStore, cfg RiskConfig, notifChan chan<- *models.Notification, log *utils.Logger) (*RiskGate, error) {
	if store == nil {
		return nil, fmt.Errorf("risk gate requires a ledger store")
	}
	ledger, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load risk ledger: %w", err)
	}
	if ledger == nil {
		ledger = models.NewRiskLedger()
	}
	return &RiskGate{
		ledger:           ledger,
		store:            store,
		config:           cfg,
		notificationChan: notifChan,
		log:              log,
	}, nil
}

// marginLevel вычисляет уровень маржи. Без открытых позиций (margin = 0)
// экспозиции нет и уровень считается бесконечным.
func marginLevel(balance *exchange.Balance) float64 {
	if balance.TotalMarginBalance > 0 {
		return balance.TotalWalletBalance / balance.TotalMarginBalance
	}
	return math.Inf(1)
}

// CanTrade решает, допустима ли сделка. Проверки выполняются по порядку
// и обрываются на первом отказе: маржа, кулдаун, дневной лимит,
// недельный лимит, серия убытков. Отказ по серии убытков дополнительно
// устанавливает новый кулдаун (эскалация, а не просто отклонение).
func (rg *RiskGate) CanTrade(ctx context.Context, balance *exchange.Balance) (allowed bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			rg.log.Errorf("risk gate panic: %v", r)
			RecordTradeBlock("internal")
			allowed = false
			reason = "risk check failed, trading blocked"
		}
	}()

	if balance == nil {
		RecordTradeBlock("internal")
		return false, "balance unavailable, trading blocked"
	}

	rg.mu.Lock()
	defer rg.mu.Unlock()

	now := time.Now()

	// 1. Уровень маржи
	level := marginLevel(balance)
	rg.ledger.LastMarginCheck = &models.MarginCheck{Timestamp: now, MarginLevel: level}
	if level < rg.config.MinMarginLevel {
		msg := fmt.Sprintf("Margin level too low: %.2f (min %.2f)", level, rg.config.MinMarginLevel)
		rg.ledger.AppendMarginAlert(models.MarginAlert{
			Timestamp:   now,
			MarginLevel: level,
			Message:     msg,
		})
		rg.persistLocked(ctx)
		RecordTradeBlock("margin")
		rg.notifyMarginAlert(level, msg)
		return false, msg
	}

	// 2. Активный кулдаун
	if now.Before(rg.ledger.CooldownUntil) {
		remaining := int(rg.ledger.CooldownUntil.Sub(now).Minutes()) + 1
		RecordTradeBlock("cooldown")
		return false, fmt.Sprintf("Trading paused for another %d minutes", remaining)
	}

	// 3. Дневной лимит. Сравнивается модуль дневного PnL: отклонение
	// в любую сторону на величину лимита останавливает торговлю до
	// конца суток
	dailyPnl := rg.ledger.DailyPnL[models.DayKey(now)]
	if math.Abs(dailyPnl) >= rg.config.DailyLossLimit {
		RecordTradeBlock("daily_limit")
		return false, fmt.Sprintf("Daily loss limit reached: $%.2f/$%.2f",
			math.Abs(dailyPnl), rg.config.DailyLossLimit)
	}

	// 4. Недельный лимит, тот же модуль
	weeklyPnl := rg.ledger.WeeklyPnL[models.WeekKey(now)]
	if math.Abs(weeklyPnl) >= rg.config.WeeklyLossLimit {
		RecordTradeBlock("weekly_limit")
		return false, fmt.Sprintf("Weekly loss limit reached: $%.2f/$%.2f",
			math.Abs(weeklyPnl), rg.config.WeeklyLossLimit)
	}

	// 5. Серия убытков - эскалация: назначаем новый кулдаун
	if rg.ledger.ConsecutiveLosses >= rg.config.MaxConsecutiveLosses {
		rg.ledger.CooldownUntil = now.Add(rg.config.Cooldown)
		rg.persistLocked(ctx)
		RecordTradeBlock("consecutive_losses")
		return false, fmt.Sprintf("Max consecutive losses reached (%d) - trading paused for %d minutes",
			rg.ledger.ConsecutiveLosses, int(rg.config.Cooldown.Minutes()))
	}

	return true, "OK"
}

// RecordTrade учитывает результат сделки: аккумуляторы, история,
// счетчик серии убытков, кулдаун при достижении максимума.
// Обновление атомарно: изменения применяются к копии леджера и
// подменяют оригинал только после успешной записи в хранилище.
func (rg *RiskGate) RecordTrade(ctx context.Context, symbol string, pnl float64) error {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	now := time.Now()
	record := models.TradeRecord{Timestamp: now, Symbol: symbol, PnL: pnl}
	next := rg.ledger.Clone()

	next.DailyPnL[models.DayKey(now)] += pnl
	next.WeeklyPnL[models.WeekKey(now)] += pnl
	next.AppendTrade(record)

	if pnl < 0 {
		next.ConsecutiveLosses++
		if next.ConsecutiveLosses >= rg.config.MaxConsecutiveLosses {
			next.CooldownUntil = now.Add(rg.config.Cooldown)
			rg.log.Warnf("consecutive loss limit hit (%d), cooldown until %s",
				next.ConsecutiveLosses, next.CooldownUntil.Format(time.RFC3339))
		}
	} else {
		next.ConsecutiveLosses = 0
	}

	if err := rg.store.Save(ctx, next); err != nil {
		return fmt.Errorf("persist risk ledger: %w", err)
	}
	rg.ledger = next

	if rg.tradeLog != nil {
		if err := rg.tradeLog.Insert(ctx, record); err != nil {
			rg.log.Errorf("append trade log: %v", err)
		}
	}

	RecordRealizedPnl(pnl)
	ConsecutiveLosses.Set(float64(next.ConsecutiveLosses))
	DailyPnl.Set(next.DailyPnL[models.DayKey(now)])
	return nil
}

// ResetDailyLimits удаляет дневные записи старше 7 дней.
func (rg *RiskGate) ResetDailyLimits(ctx context.Context) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if removed := rg.ledger.PruneDaily(time.Now(), 7*24*time.Hour); removed > 0 {
		rg.log.Infof("pruned %d daily pnl entries", removed)
		rg.persistLocked(ctx)
	}
}

// ResetWeeklyLimits оставляет последние 4 ISO-недели.
func (rg *RiskGate) ResetWeeklyLimits(ctx context.Context) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if removed := rg.ledger.PruneWeekly(time.Now(), 4); removed > 0 {
		rg.log.Infof("pruned %d weekly pnl entries", removed)
		rg.persistLocked(ctx)
	}
}

// Stats возвращает сводку для дашборда.
func (rg *RiskGate) Stats() *models.RiskStats {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	now := time.Now()
	stats := &models.RiskStats{
		DailyPnL:          rg.ledger.DailyPnL[models.DayKey(now)],
		WeeklyPnL:         rg.ledger.WeeklyPnL[models.WeekKey(now)],
		DailyLimit:        rg.config.DailyLossLimit,
		WeeklyLimit:       rg.config.WeeklyLossLimit,
		ConsecutiveLosses: rg.ledger.ConsecutiveLosses,
		MaxConsecutive:    rg.config.MaxConsecutiveLosses,
		RecentTrades:      append([]models.TradeRecord(nil), rg.ledger.TradeHistory...),
		RecentAlerts:      append([]models.MarginAlert(nil), rg.ledger.MarginAlerts...),
	}
	if rg.ledger.LastMarginCheck != nil {
		check := *rg.ledger.LastMarginCheck
		stats.LastMarginCheck = &check
	}
	if now.Before(rg.ledger.CooldownUntil) {
		stats.CooldownActive = true
		stats.CooldownRemaining = rg.ledger.CooldownUntil.Sub(now).Round(time.Second).String()
	}
	return stats
}

// persistLocked сохраняет текущий леджер. Вызывается под mu;
// сбой записи логируется, но решение гейта не меняет.
func (rg *RiskGate) persistLocked(ctx context.Context) {
	if err := rg.store.Save(ctx, rg.ledger); err != nil {
		rg.log.Errorf("persist risk ledger: %v", err)
	}
}

// notifyMarginAlert отправляет уведомление о падении уровня маржи
func (rg *RiskGate) notifyMarginAlert(level float64, msg string) {
	notif := models.NewNotification(models.NotificationTypeMarginAlert, models.SeverityWarn, "", "⚠️ "+msg)
	notif.Meta = map[string]interface{}{"margin_level": level}
	tryEnqueueNotification(rg.notificationChan, notif)
}
