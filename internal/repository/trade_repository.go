package repository

import (
	"context"
	"database/sql"
	"time"

	"tradebot/internal/models"
)

// TradeRepository - работа с таблицей trade_log.
// Журнал append-only: записи не обновляются и не удаляются,
// это аудиторский след всех учтенных сделок.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Insert добавляет сделку в журнал
func (r *TradeRepository) Insert(ctx context.Context, record models.TradeRecord) error {
	query := `
		INSERT INTO trade_log (symbol, pnl, executed_at)
		VALUES ($1, $2, $3)`

	_, err := r.db.ExecContext(ctx, query, record.Symbol, record.PnL, record.Timestamp)
	return err
}

// ListRecent возвращает последние сделки, новые первыми
func (r *TradeRepository) ListRecent(ctx context.Context, limit int) ([]models.TradeRecord, error) {
	if limit <= 0 {
		limit = models.TradeHistoryLimit
	}

	query := `
		SELECT symbol, pnl, executed_at
		FROM trade_log
		ORDER BY executed_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// ListSince возвращает сделки начиная с момента времени, старые первыми.
// Для выборки "за сегодня" момент берется через utils.GetDayStart.
func (r *TradeRepository) ListSince(ctx context.Context, since time.Time) ([]models.TradeRecord, error) {
	query := `
		SELECT symbol, pnl, executed_at
		FROM trade_log
		WHERE executed_at >= $1
		ORDER BY executed_at ASC`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]models.TradeRecord, error) {
	var trades []models.TradeRecord
	for rows.Next() {
		var rec models.TradeRecord
		if err := rows.Scan(&rec.Symbol, &rec.PnL, &rec.Timestamp); err != nil {
			return nil, err
		}
		trades = append(trades, rec)
	}
	return trades, rows.Err()
}
