package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tradebot/internal/models"
)

// Ошибки репозитория риск-леджера
var (
	ErrLedgerNotFound = errors.New("risk ledger not found")
)

// RiskRepository - работа с таблицей risk_ledger.
// Леджер хранится одной JSONB-записью (всегда id=1): читается и
// переписывается целиком, частичных обновлений нет. Реализует
// bot.LedgerStore.
type RiskRepository struct {
	db *sql.DB
}

// NewRiskRepository создает новый экземпляр репозитория
func NewRiskRepository(db *sql.DB) *RiskRepository {
	return &RiskRepository{db: db}
}

// Load возвращает леджер. Отсутствующая запись создается пустой:
// первый запуск бота не должен требовать ручной инициализации БД.
func (r *RiskRepository) Load(ctx context.Context) (*models.RiskLedger, error) {
	query := `
		SELECT ledger
		FROM risk_ledger
		WHERE id = 1`

	var raw []byte
	err := r.db.QueryRowContext(ctx, query).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.createDefault(ctx)
		}
		return nil, err
	}

	ledger := models.NewRiskLedger()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, ledger); err != nil {
			return nil, fmt.Errorf("decode risk ledger: %w", err)
		}
	}
	// Карты могли сериализоваться как null
	if ledger.DailyPnL == nil {
		ledger.DailyPnL = make(map[string]float64)
	}
	if ledger.WeeklyPnL == nil {
		ledger.WeeklyPnL = make(map[string]float64)
	}
	return ledger, nil
}

// Save записывает леджер целиком (upsert по id=1)
func (r *RiskRepository) Save(ctx context.Context, ledger *models.RiskLedger) error {
	raw, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("encode risk ledger: %w", err)
	}

	query := `
		INSERT INTO risk_ledger (id, ledger, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET ledger = $1, updated_at = $2`

	_, err = r.db.ExecContext(ctx, query, raw, time.Now())
	return err
}

// createDefault создает пустой леджер при первом обращении
func (r *RiskRepository) createDefault(ctx context.Context) (*models.RiskLedger, error) {
	ledger := models.NewRiskLedger()
	raw, err := json.Marshal(ledger)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO risk_ledger (id, ledger, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, raw, time.Now()); err != nil {
		return nil, err
	}
	return ledger, nil
}
