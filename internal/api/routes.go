package api

import (
	"net/http"
	"net/http/pprof"

	"tradebot/internal/api/handlers"
	"tradebot/internal/api/middleware"
	"tradebot/internal/service"
	"tradebot/internal/websocket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	BotService service.BotServiceInterface
	Hub        *websocket.Hub
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Назначение:
// Центральное место для определения всех API endpoints.
// Регистрирует handlers для каждого маршрута.
// Применяет middleware к группам маршрутов.
// Организует версионирование API (v1).
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /signals
//	│   └── POST / - исполнить торговый сигнал
//	├── /positions/
//	│   ├── GET / - сводка отслеживаемых позиций
//	│   ├── POST /{symbol}/breakeven - перенести стоп в безубыток
//	│   └── DELETE /{symbol} - снять позицию с сопровождения
//	├── /monitoring/
//	│   ├── POST /start - запустить цикл мониторинга
//	│   └── POST /stop - остановить цикл мониторинга
//	├── /risk
//	│   └── GET / - состояние риск-леджера
//	└── /trades/
//	    ├── GET / - последние сделки
//	    └── GET /today - сделки текущих суток
//
// /ws/
//
//	└── /stream - WebSocket для real-time обновлений
//
// /metrics - Prometheus метрики
// /debug/pprof - профилировщик (под DebugAuth)
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. BasicAuth (только для /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var tradingHandler *handlers.TradingHandler
	var monitorHandler *handlers.MonitorHandler
	var riskHandler *handlers.RiskHandler
	if deps != nil && deps.BotService != nil {
		tradingHandler = handlers.NewTradingHandler(deps.BotService)
		monitorHandler = handlers.NewMonitorHandler(deps.BotService)
		riskHandler = handlers.NewRiskHandler(deps.BotService)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Бот исполняет реальные ордера - операторский API под Basic Auth
	api.Use(middleware.BasicAuth)

	// Trading routes
	if tradingHandler != nil {
		api.HandleFunc("/signals", tradingHandler.ExecuteSignal).Methods("POST")
		api.HandleFunc("/positions/{symbol}/breakeven", tradingHandler.SetBreakeven).Methods("POST")
		api.HandleFunc("/positions/{symbol}", tradingHandler.RemovePosition).Methods("DELETE")
	}

	// Monitoring routes
	if monitorHandler != nil {
		api.HandleFunc("/positions", monitorHandler.GetPositions).Methods("GET")
		api.HandleFunc("/monitoring/start", monitorHandler.StartMonitoring).Methods("POST")
		api.HandleFunc("/monitoring/stop", monitorHandler.StopMonitoring).Methods("POST")
	}

	// Risk routes
	if riskHandler != nil {
		api.HandleFunc("/risk", riskHandler.GetRiskStats).Methods("GET")
		api.HandleFunc("/trades", riskHandler.GetTradeHistory).Methods("GET")
		api.HandleFunc("/trades/today", riskHandler.GetTodayTrades).Methods("GET")
	}

	// WebSocket route
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// pprof под отдельной debug-аутентификацией
	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.Use(middleware.DebugAuth)
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").HandlerFunc(pprof.Index)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
