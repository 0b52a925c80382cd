package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradebot/internal/models"
)

// ============================================================
// TradeRepository Tests
// ============================================================

func TestTradeRepositoryInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rec := models.TradeRecord{
		Timestamp: time.Now(),
		Symbol:    "BTCUSDT",
		PnL:       12.5,
	}
	mock.ExpectExec(`INSERT INTO trade_log`).
		WithArgs(rec.Symbol, rec.PnL, rec.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewTradeRepository(db)
	if err := repo.Insert(context.Background(), rec); err != nil {
		t.Fatalf("вставка сделки: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("не все ожидания выполнены: %v", err)
	}
}

func TestTradeRepositoryInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO trade_log`).
		WillReturnError(errors.New("connection refused"))

	repo := NewTradeRepository(db)
	if err := repo.Insert(context.Background(), models.TradeRecord{Symbol: "BTCUSDT"}); err == nil {
		t.Fatal("ожидали ошибку")
	}
}

func TestTradeRepositoryListRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"symbol", "pnl", "executed_at"}).
		AddRow("ETHUSDT", -5.0, now).
		AddRow("BTCUSDT", 10.0, now.Add(-time.Hour))
	mock.ExpectQuery(`SELECT symbol, pnl, executed_at FROM trade_log ORDER BY executed_at DESC LIMIT \$1`).
		WithArgs(50).
		WillReturnRows(rows)

	repo := NewTradeRepository(db)
	trades, err := repo.ListRecent(context.Background(), 50)
	if err != nil {
		t.Fatalf("выборка сделок: %v", err)
	}

	if len(trades) != 2 {
		t.Fatalf("ожидали 2 сделки, получили %d", len(trades))
	}
	if trades[0].Symbol != "ETHUSDT" || trades[0].PnL != -5.0 {
		t.Errorf("первая запись: %+v", trades[0])
	}
}

func TestTradeRepositoryListRecentDefaultsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT symbol, pnl, executed_at FROM trade_log`).
		WithArgs(models.TradeHistoryLimit).
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "pnl", "executed_at"}))

	repo := NewTradeRepository(db)
	if _, err := repo.ListRecent(context.Background(), 0); err != nil {
		t.Fatalf("выборка с нулевым лимитом: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("лимит по умолчанию не применен: %v", err)
	}
}

func TestTradeRepositoryListSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	since := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"symbol", "pnl", "executed_at"}).
		AddRow("BTCUSDT", 3.0, since.Add(2*time.Hour))
	mock.ExpectQuery(`SELECT symbol, pnl, executed_at FROM trade_log WHERE executed_at >= \$1`).
		WithArgs(since).
		WillReturnRows(rows)

	repo := NewTradeRepository(db)
	trades, err := repo.ListSince(context.Background(), since)
	if err != nil {
		t.Fatalf("выборка за период: %v", err)
	}
	if len(trades) != 1 || trades[0].PnL != 3.0 {
		t.Errorf("неожиданный результат: %+v", trades)
	}
}
