package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradebot/internal/api"
	"tradebot/internal/bot"
	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/internal/notifier"
	"tradebot/internal/repository"
	"tradebot/internal/service"
	sigparser "tradebot/internal/signal"
	"tradebot/internal/websocket"
	"tradebot/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer log.Sync()

	log.Info("starting trading bot",
		utils.String("exchange", cfg.Exchange.Name),
		utils.String("position_mode", cfg.Trading.PositionMode),
	)

	// Шлюз биржи (bybit или demo-симуляция)
	gateway, err := exchange.NewGateway(exchange.Config{
		Name:        cfg.Exchange.Name,
		APIKey:      cfg.Exchange.APIKey,
		SecretKey:   cfg.Exchange.SecretKey,
		Testnet:     cfg.Exchange.Testnet,
		DemoSeed:    cfg.Exchange.DemoSeed,
		DemoBalance: cfg.Exchange.DemoBalance,
	})
	if err != nil {
		log.Fatal("failed to create exchange gateway", utils.Err(err))
	}

	// Хранилище риск-леджера и журнал сделок.
	// В demo-режиме БД не нужна: леджер живет в памяти.
	var ledgerStore bot.LedgerStore
	var tradeRepo *repository.TradeRepository
	if cfg.IsDemo() {
		ledgerStore = bot.NewMemoryLedgerStore()
		log.Info("running in demo mode, ledger kept in memory")
	} else {
		db, err := initDatabase(cfg)
		if err != nil {
			log.Fatal("failed to connect to database", utils.Err(err))
		}
		defer db.Close()
		log.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

		ledgerStore = repository.NewRiskRepository(db)
		tradeRepo = repository.NewTradeRepository(db)
	}

	// Канал уведомлений: бот пишет non-blocking, dispatcher разгребает
	notifChan := make(chan *models.Notification, 256)

	ctx := context.Background()

	// Риск-гейт
	risk, err := bot.NewRiskGate(ctx, ledgerStore, bot.RiskConfig{
		DailyLossLimit:       cfg.Risk.DailyLossLimit,
		WeeklyLossLimit:      cfg.Risk.WeeklyLossLimit,
		MaxConsecutiveLosses: cfg.Risk.MaxConsecutiveLosses,
		MinMarginLevel:       cfg.Risk.MinMarginLevel,
		Cooldown:             cfg.Risk.Cooldown,
	}, notifChan, log)
	if err != nil {
		log.Fatal("failed to init risk gate", utils.Err(err))
	}
	if tradeRepo != nil {
		risk.SetTradeLog(tradeRepo)
	}

	// Исполнитель сигналов
	executor := bot.NewSignalExecutor(gateway, risk, bot.ExecutorConfig{
		PositionMode:    cfg.Trading.PositionMode,
		RiskPercentage:  cfg.Trading.RiskPercentage,
		FixedAmount:     cfg.Trading.FixedAmount,
		Leverage:        cfg.Trading.Leverage,
		MaxPositionSize: cfg.Trading.MaxPositionSize,
		BreakevenTarget: cfg.Trading.BreakevenTarget,
	}, notifChan, log)

	// Сопровождение позиций
	tracker := bot.NewPositionTracker(gateway, risk, bot.TrackerConfig{
		PositionMode: cfg.Trading.PositionMode,
		PollInterval: cfg.Tracker.PollInterval,
		SetupDelay:   cfg.Tracker.SetupDelay,
		CallTimeout:  cfg.Tracker.CallTimeout,
		ErrorBackoff: cfg.Tracker.ErrorBackoff,
	}, notifChan, log)

	// Торговый движок
	engine := bot.NewEngine(risk, executor, tracker, log)
	engine.Start()

	// WebSocket hub для дашборда
	hub := websocket.NewHub()
	go hub.Run()

	// Доставка уведомлений: лог всегда, Telegram по конфигурации
	sinks := []notifier.Sink{notifier.NewLogSink(log)}
	if cfg.Telegram.Enabled {
		tgSink, err := notifier.NewTelegramSink(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			log.Fatal("failed to init telegram sink", utils.Err(err))
		}
		sinks = append(sinks, tgSink)
		log.Info("telegram notifications enabled")
	}
	dispatcher := notifier.NewDispatcher(notifChan, hub, log, sinks...)
	dispatcher.Start()

	// Операторский сервис
	parser := sigparser.NewParser(models.SignalSourceAPI)
	var tradeRepoIface service.TradeRepositoryInterface
	if tradeRepo != nil {
		tradeRepoIface = tradeRepo
	}
	botService := service.NewBotService(engine, parser, tradeRepoIface)

	// Настройка HTTP роутера
	router := api.SetupRoutes(&api.Dependencies{
		BotService: botService,
		Hub:        hub,
	})

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		log.Info("starting server", utils.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatal("server failed", utils.Err(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("server failed", utils.Err(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	// Останавливаем движок (мониторинг дожидается текущего прохода)
	engine.Stop()

	// Дожидаемся доставки оставшихся уведомлений
	dispatcher.Stop()
	hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", utils.Err(err))
	}

	exchange.CloseGlobalClient()

	log.Info("server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
