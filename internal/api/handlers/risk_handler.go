package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tradebot/internal/models"
	"tradebot/internal/service"
)

// RiskHandler обрабатывает HTTP запросы риск-статистики и истории сделок.
//
// Endpoints:
// - GET /api/v1/risk - текущее состояние риск-леджера
// - GET /api/v1/trades?limit=50 - последние сделки
// - GET /api/v1/trades/today - сделки текущих суток (UTC)
type RiskHandler struct {
	botService service.BotServiceInterface
}

// NewRiskHandler создает новый RiskHandler с внедрением зависимостей.
func NewRiskHandler(botService service.BotServiceInterface) *RiskHandler {
	return &RiskHandler{
		botService: botService,
	}
}

// GetRiskStats возвращает текущее состояние риск-леджера.
//
// GET /api/v1/risk
//
// Response 200 OK:
//
//	{
//	  "daily_pnl": -120.50,
//	  "weekly_pnl": -340.00,
//	  "consecutive_losses": 2,
//	  "cooldown_until": "2026-08-29T15:30:00Z",
//	  "daily_loss_limit": 500,
//	  "weekly_loss_limit": 2000
//	}
func (h *RiskHandler) GetRiskStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.botService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "bot service not initialized",
		})
		return
	}

	stats := h.botService.GetRiskStats()

	if stats.RecentTrades == nil {
		stats.RecentTrades = []models.TradeRecord{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}

// GetTradeHistory возвращает последние сделки из журнала.
//
// GET /api/v1/trades?limit=50
//
// Query Parameters:
// - limit (optional): количество записей (по умолчанию 100, максимум 500)
//
// Response 200 OK:
//
//	[
//	  {"timestamp": "2026-08-29T12:00:00Z", "symbol": "BTCUSDT", "pnl": 45.20},
//	  {"timestamp": "2026-08-29T10:15:00Z", "symbol": "ETHUSDT", "pnl": -12.80}
//	]
func (h *RiskHandler) GetTradeHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.botService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "bot service not initialized",
		})
		return
	}

	limit := models.TradeHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 500 {
				limit = 500
			}
		}
	}

	trades, err := h.botService.GetTradeHistory(r.Context(), limit)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to get trade history",
			"details": err.Error(),
		})
		return
	}

	if trades == nil {
		trades = []models.TradeRecord{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(trades)
}

// GetTodayTrades возвращает сделки текущих суток (UTC).
//
// GET /api/v1/trades/today
//
// Response 200 OK: тот же формат, что и /trades
func (h *RiskHandler) GetTodayTrades(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.botService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "bot service not initialized",
		})
		return
	}

	trades, err := h.botService.GetTodayTrades(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to get today trades",
			"details": err.Error(),
		})
		return
	}

	if trades == nil {
		trades = []models.TradeRecord{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(trades)
}
