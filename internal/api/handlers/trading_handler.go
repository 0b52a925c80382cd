package handlers

import (
	"encoding/json"
	"net/http"

	"tradebot/internal/bot"
	"tradebot/internal/service"

	"github.com/gorilla/mux"
)

// TradingHandler обрабатывает HTTP запросы на исполнение и сопровождение сделок.
//
// Endpoints:
// - POST /api/v1/signals - исполнить торговый сигнал
// - POST /api/v1/positions/{symbol}/breakeven - перенести стоп в безубыток
// - DELETE /api/v1/positions/{symbol} - снять позицию с сопровождения
type TradingHandler struct {
	botService service.BotServiceInterface
}

// NewTradingHandler создает новый TradingHandler с внедрением зависимостей.
func NewTradingHandler(botService service.BotServiceInterface) *TradingHandler {
	return &TradingHandler{
		botService: botService,
	}
}

// ExecuteSignal исполняет торговый сигнал.
//
// POST /api/v1/signals
//
// Request body (сырой текст из канала):
//
//	{"raw_text": "#BTC LONG\nEntry: 42000\nTarget 1: 43000\nTarget 2: 44500\nStop: 41000"}
//
// или структурированный сигнал:
//
//	{
//	  "symbol": "BTCUSDT",
//	  "side": "long",
//	  "entry_price": 42000,
//	  "targets": {"1": 43000, "2": 44500},
//	  "stop_loss": 41000
//	}
//
// Response 200 OK:
//
//	{
//	  "outcome": "executed",
//	  "order_id": "abc-123",
//	  "symbol": "BTCUSDT",
//	  "sizing": {
//	    "available_balance": 1000,
//	    "margin_amount": 20,
//	    "leverage": 10,
//	    "position_value": 200,
//	    "raw_quantity": 0.00476,
//	    "quantity": 0.004
//	  }
//	}
//
// Заблокированный или отклоненный сигнал - тоже 200, с outcome и reason:
//
//	{"outcome": "blocked", "reason": "Daily loss limit reached: $520.00/$500.00", "symbol": "BTCUSDT"}
//
// Response 400 Bad Request:
//
//	{"error": "invalid signal", "details": "..."}
func (h *TradingHandler) ExecuteSignal(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.botService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "bot service not initialized",
		})
		return
	}

	var req service.ExecuteSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.botService.ExecuteSignal(r.Context(), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "invalid signal",
			"details": err.Error(),
		})
		return
	}

	// Исполнение с ошибкой биржи - внутренняя проблема, не ошибка клиента
	if result.Outcome == bot.OutcomeFailed {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(result)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// SetBreakeven переносит стоп-лосс позиции в точку входа.
//
// POST /api/v1/positions/{symbol}/breakeven
//
// Response 200 OK:
//
//	{"message": "stop loss moved to breakeven", "symbol": "BTCUSDT"}
//
// Response 404 Not Found:
//
//	{"error": "position not found", "details": "..."}
func (h *TradingHandler) SetBreakeven(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.botService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "bot service not initialized",
		})
		return
	}

	vars := mux.Vars(r)
	symbol := vars["symbol"]

	if err := h.botService.SetBreakeven(r.Context(), symbol); err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to move stop loss",
			"details": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "stop loss moved to breakeven",
		"symbol":  symbol,
	})
}

// RemovePosition снимает позицию с сопровождения.
//
// DELETE /api/v1/positions/{symbol}?cancel_orders=true
//
// Query Parameters:
// - cancel_orders (optional): отменить висящие TP/SL ордера на бирже
//   (по умолчанию false - ордера остаются)
//
// Response 200 OK:
//
//	{"message": "position removed", "symbol": "BTCUSDT"}
//
// Response 404 Not Found:
//
//	{"error": "failed to remove position", "details": "..."}
func (h *TradingHandler) RemovePosition(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.botService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "bot service not initialized",
		})
		return
	}

	vars := mux.Vars(r)
	symbol := vars["symbol"]
	cancelOrders := r.URL.Query().Get("cancel_orders") == "true"

	if err := h.botService.RemovePosition(r.Context(), symbol, cancelOrders); err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to remove position",
			"details": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "position removed",
		"symbol":  symbol,
	})
}
