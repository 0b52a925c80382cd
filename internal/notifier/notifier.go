package notifier

import (
	"context"
	"fmt"
	"sync"

	"tradebot/internal/models"
	"tradebot/pkg/utils"

	"go.uber.org/zap"
)

// Sink доставляет уведомление во внешний канал.
// Доставка fire-and-forget: ошибка одного sink не влияет на остальные.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, notif *models.Notification) error
}

// Broadcaster рассылает уведомления подключенным дашбордам
type Broadcaster interface {
	BroadcastNotification(notif *models.Notification)
}

// Dispatcher читает уведомления из канала бота и раздает их по sinks
// и WebSocket дашборду.
//
// Назначение:
// Развязывает торговый цикл и доставку: бот пишет в буферизованный
// канал non-blocking, dispatcher разгребает его в своем темпе.
type Dispatcher struct {
	ch          <-chan *models.Notification
	sinks       []Sink
	broadcaster Broadcaster

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once

	log *utils.Logger
}

// NewDispatcher создает новый Dispatcher.
// broadcaster может быть nil (режим без дашборда).
func NewDispatcher(ch <-chan *models.Notification, broadcaster Broadcaster, log *utils.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		ch:          ch,
		sinks:       sinks,
		broadcaster: broadcaster,
		stop:        make(chan struct{}),
		log:         log.WithComponent("notifier"),
	}
}

// Start запускает цикл доставки в отдельной горутине
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop останавливает цикл доставки и дожидается его завершения
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.stop)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stop:
			// Дренируем остатки канала перед выходом
			for {
				select {
				case notif := <-d.ch:
					d.dispatch(notif)
				default:
					return
				}
			}
		case notif := <-d.ch:
			d.dispatch(notif)
		}
	}
}

func (d *Dispatcher) dispatch(notif *models.Notification) {
	if d.broadcaster != nil {
		d.broadcaster.BroadcastNotification(notif)
	}

	for _, sink := range d.sinks {
		if err := sink.Deliver(context.Background(), notif); err != nil {
			d.log.Warn("notification delivery failed",
				utils.String("sink", sink.Name()),
				utils.String("type", notif.Type),
				utils.Err(err),
			)
		}
	}
}

// LogSink пишет уведомления в структурированный лог.
// Всегда включен: журнал событий остается даже без Telegram и дашборда.
type LogSink struct {
	log *utils.Logger
}

// NewLogSink создает новый LogSink
func NewLogSink(log *utils.Logger) *LogSink {
	return &LogSink{log: log.WithComponent("events")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, notif *models.Notification) error {
	fields := []zap.Field{
		utils.String("type", notif.Type),
		utils.String("severity", notif.Severity),
	}
	if notif.Symbol != "" {
		fields = append(fields, utils.Symbol(notif.Symbol))
	}

	msg := fmt.Sprintf("event: %s", notif.Message)
	switch notif.Severity {
	case models.SeverityError:
		s.log.Error(msg, fields...)
	case models.SeverityWarn:
		s.log.Warn(msg, fields...)
	default:
		s.log.Info(msg, fields...)
	}
	return nil
}
