package handlers

import (
	"encoding/json"
	"net/http"

	"tradebot/internal/models"
	"tradebot/internal/service"
)

// MonitorHandler обрабатывает HTTP запросы мониторинга позиций.
//
// Endpoints:
// - GET /api/v1/positions - сводка отслеживаемых позиций
// - POST /api/v1/monitoring/start - запустить цикл мониторинга
// - POST /api/v1/monitoring/stop - остановить цикл мониторинга
type MonitorHandler struct {
	botService service.BotServiceInterface
}

// NewMonitorHandler создает новый MonitorHandler с внедрением зависимостей.
func NewMonitorHandler(botService service.BotServiceInterface) *MonitorHandler {
	return &MonitorHandler{
		botService: botService,
	}
}

// GetPositions возвращает сводку отслеживаемых позиций.
//
// GET /api/v1/positions
//
// Response 200 OK:
//
//	{
//	  "monitoring_active": true,
//	  "count": 1,
//	  "positions": [
//	    {
//	      "symbol": "BTCUSDT",
//	      "side": "long",
//	      "entry_price": 42000,
//	      "quantity": 0.004,
//	      "filled_targets": [1],
//	      "total_targets": 2,
//	      "stop_kind": "native",
//	      "stop_moved_to_breakeven": true,
//	      "last_observed_price": 43100
//	    }
//	  ]
//	}
func (h *MonitorHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.botService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "bot service not initialized",
		})
		return
	}

	summary := h.botService.GetPositionsSummary()

	// Пустой список должен отдаваться как [], а не null
	if summary.Positions == nil {
		summary.Positions = []models.PositionSummary{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(summary)
}

// StartMonitoring запускает цикл мониторинга позиций.
//
// POST /api/v1/monitoring/start
//
// Response 200 OK:
//
//	{"message": "monitoring started"}
func (h *MonitorHandler) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.botService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "bot service not initialized",
		})
		return
	}

	h.botService.StartMonitoring()

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "monitoring started",
	})
}

// StopMonitoring останавливает цикл мониторинга позиций.
// Дожидается завершения текущего прохода опроса.
//
// POST /api/v1/monitoring/stop
//
// Response 200 OK:
//
//	{"message": "monitoring stopped"}
func (h *MonitorHandler) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.botService == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "bot service not initialized",
		})
		return
	}

	h.botService.StopMonitoring()

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "monitoring stopped",
	})
}
