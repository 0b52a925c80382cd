package exchange

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
)

// Demo реализует Gateway как чистую симуляцию без сети и ключей.
// Это полноценный рабочий режим (торговля "на бумаге"), а не тестовая
// заглушка: ордера получают синтетические id, цены движутся случайным
// блужданием +-2% вокруг базы, лимитные и условные ордера исполняются
// при пересечении цены. При одинаковом seed поведение воспроизводимо.
type Demo struct {
	mu sync.Mutex

	rng *rand.Rand
	seq int64

	balance float64 // свободные средства USDT

	fixedPrices map[string]float64 // цены, заданные явно (SetPrice)
	simPrices   map[string]float64 // цены, сгенерированные симуляцией

	positions map[string]*demoPosition
	orders    map[string]*demoOrder
	stops     map[string]float64 // нативные trading stop по символам
	leverages map[string]int
}

type demoPosition struct {
	side     string // SideBuy = long, SideSell = short
	size     float64
	entry    float64
	leverage int
}

type demoOrder struct {
	id           string
	symbol       string
	side         string
	qty          float64
	price        float64 // лимитная цена (0 для условных)
	triggerPrice float64 // цена срабатывания (0 для лимитных)
	reduceOnly   bool
	status       OrderStatus
}

const demoVolatility = 0.02 // +-2% шаг случайного блуждания

// NewDemo создает симулятор с заданным seed и стартовым балансом.
func NewDemo(seed int64, startBalance float64) *Demo {
	if startBalance <= 0 {
		startBalance = 10000
	}
	return &Demo{
		rng:         rand.New(rand.NewSource(seed)),
		balance:     startBalance,
		fixedPrices: make(map[string]float64),
		simPrices:   make(map[string]float64),
		positions:   make(map[string]*demoPosition),
		orders:      make(map[string]*demoOrder),
		stops:       make(map[string]float64),
		leverages:   make(map[string]int),
	}
}

func (d *Demo) Name() string {
	return "demo"
}

// SetPrice фиксирует цену символа. Управление симуляцией: после вызова
// GetLastPrice возвращает ровно эту цену, случайное блуждание для символа
// отключается. Открытые ордера немедленно проверяются на исполнение.
func (d *Demo) SetPrice(symbol string, price float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fixedPrices[symbol] = price
	d.settleAt(symbol, price)
}

func (d *Demo) nextID() string {
	d.seq++
	return fmt.Sprintf("DEMO-%d", d.seq)
}

// basePrice выводит стартовую цену символа из его имени,
// чтобы симуляция была детерминированной без таблицы котировок
func basePrice(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return 10 + float64(h.Sum32()%100000)/10
}

// currentPrice возвращает цену символа, двигая симулированную цену
// на один шаг случайного блуждания. Вызывается под mu.
func (d *Demo) currentPrice(symbol string) float64 {
	if p, ok := d.fixedPrices[symbol]; ok {
		return p
	}
	p, ok := d.simPrices[symbol]
	if !ok {
		p = basePrice(symbol)
	}
	p *= 1 + (d.rng.Float64()*2-1)*demoVolatility
	d.simPrices[symbol] = p
	return p
}

// settleAt исполняет ордера и стопы символа по наблюдаемой цене.
// Вызывается под mu.
func (d *Demo) settleAt(symbol string, price float64) {
	pos := d.positions[symbol]

	for _, o := range d.orders {
		if o.symbol != symbol || o.status != OrderStatusOpen {
			continue
		}
		filled := false
		switch {
		case o.triggerPrice > 0:
			// Условный стоп: sell срабатывает при падении, buy при росте
			if o.side == SideSell {
				filled = price <= o.triggerPrice
			} else {
				filled = price >= o.triggerPrice
			}
		case o.price > 0:
			// Лимитный: sell исполняется при росте до цены, buy при падении
			if o.side == SideSell {
				filled = price >= o.price
			} else {
				filled = price <= o.price
			}
		}
		if !filled {
			continue
		}
		o.status = OrderStatusFilled
		if o.reduceOnly && pos != nil {
			fillPrice := o.price
			if fillPrice == 0 {
				fillPrice = o.triggerPrice
			}
			d.reducePosition(symbol, o.qty, fillPrice)
			pos = d.positions[symbol]
		}
	}

	// Нативный trading stop: long закрывается при цене <= стопа,
	// short - при цене >= стопа
	if stop, ok := d.stops[symbol]; ok && pos != nil && pos.size > 0 {
		hit := false
		if pos.side == SideBuy {
			hit = price <= stop
		} else {
			hit = price >= stop
		}
		if hit {
			d.reducePosition(symbol, pos.size, stop)
			delete(d.stops, symbol)
		}
	}
}

// reducePosition уменьшает позицию и реализует PnL в баланс. Под mu.
func (d *Demo) reducePosition(symbol string, qty, price float64) {
	pos := d.positions[symbol]
	if pos == nil {
		return
	}
	if qty > pos.size {
		qty = pos.size
	}
	pnl := (price - pos.entry) * qty
	if pos.side == SideSell {
		pnl = -pnl
	}
	d.balance += pnl
	pos.size -= qty
	if pos.size <= 0 {
		delete(d.positions, symbol)
	}
}

func (d *Demo) GetWalletBalance(ctx context.Context) (*Balance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	margin := 0.0
	for _, pos := range d.positions {
		lev := pos.leverage
		if lev < 1 {
			lev = 1
		}
		margin += pos.entry * pos.size / float64(lev)
	}

	available := d.balance - margin
	if available < 0 {
		available = 0
	}

	return &Balance{
		TotalWalletBalance:    d.balance,
		TotalMarginBalance:    margin,
		TotalAvailableBalance: available,
	}, nil
}

func (d *Demo) GetSymbolRules(ctx context.Context, symbol string) (*SymbolRules, error) {
	if !strings.HasSuffix(symbol, "USDT") {
		return nil, &ExchangeError{Exchange: "demo", Code: "10001", Message: "unknown symbol " + symbol}
	}
	return &SymbolRules{
		Symbol:  symbol,
		QtyStep: 0.001,
		MinQty:  0.001,
		MaxQty:  100000,
	}, nil
}

func (d *Demo) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	price := d.currentPrice(symbol)
	d.settleAt(symbol, price)
	return price, nil
}

func (d *Demo) GetPositionSize(ctx context.Context, symbol string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pos, ok := d.positions[symbol]; ok {
		return pos.size, nil
	}
	return 0, nil
}

func (d *Demo) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64, positionIdx int) (*OrderResult, error) {
	if qty <= 0 {
		return nil, &ExchangeError{Exchange: "demo", Code: "10002", Message: "invalid qty"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	price := d.currentPrice(symbol)

	pos := d.positions[symbol]
	switch {
	case pos == nil:
		d.positions[symbol] = &demoPosition{
			side:     side,
			size:     qty,
			entry:    price,
			leverage: d.leverages[symbol],
		}
	case pos.side == side:
		// Усреднение входа при доборе
		pos.entry = (pos.entry*pos.size + price*qty) / (pos.size + qty)
		pos.size += qty
	default:
		d.reducePosition(symbol, qty, price)
	}

	return &OrderResult{
		OrderID:      d.nextID(),
		Symbol:       symbol,
		Side:         side,
		Quantity:     qty,
		FilledQty:    qty,
		AvgFillPrice: price,
	}, nil
}

func (d *Demo) PlaceLimitOrder(ctx context.Context, symbol, side string, qty, price float64, reduceOnly bool, positionIdx int) (*OrderResult, error) {
	if qty <= 0 || price <= 0 {
		return nil, &ExchangeError{Exchange: "demo", Code: "10002", Message: "invalid qty or price"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	o := &demoOrder{
		id:         d.nextID(),
		symbol:     symbol,
		side:       side,
		qty:        qty,
		price:      price,
		reduceOnly: reduceOnly,
		status:     OrderStatusOpen,
	}
	d.orders[o.id] = o

	return &OrderResult{OrderID: o.id, Symbol: symbol, Side: side, Quantity: qty}, nil
}

func (d *Demo) SetTradingStop(ctx context.Context, symbol, stopPrice string, positionIdx int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if stopPrice == "" {
		delete(d.stops, symbol)
		return nil
	}

	var price float64
	if _, err := fmt.Sscanf(stopPrice, "%f", &price); err != nil || price <= 0 {
		return &ExchangeError{Exchange: "demo", Code: "10002", Message: "invalid stop price"}
	}
	d.stops[symbol] = price
	return nil
}

func (d *Demo) PlaceConditionalStop(ctx context.Context, symbol, side string, qty, triggerPrice float64, positionIdx int) (*OrderResult, error) {
	if qty <= 0 || triggerPrice <= 0 {
		return nil, &ExchangeError{Exchange: "demo", Code: "10002", Message: "invalid qty or trigger price"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	o := &demoOrder{
		id:           d.nextID(),
		symbol:       symbol,
		side:         side,
		qty:          qty,
		triggerPrice: triggerPrice,
		reduceOnly:   true,
		status:       OrderStatusOpen,
	}
	d.orders[o.id] = o

	return &OrderResult{OrderID: o.id, Symbol: symbol, Side: side, Quantity: qty}, nil
}

func (d *Demo) CancelOrder(ctx context.Context, symbol, orderID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, ok := d.orders[orderID]
	if !ok {
		return &ExchangeError{Exchange: "demo", Code: "110001", Message: "order not found: " + orderID}
	}
	if o.status != OrderStatusOpen {
		return &ExchangeError{Exchange: "demo", Code: "110004", Message: "order not open: " + orderID}
	}
	o.status = OrderStatusCancelled
	return nil
}

func (d *Demo) GetOrderStatus(ctx context.Context, symbol, orderID string) (OrderStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if o, ok := d.orders[orderID]; ok {
		return o.status, nil
	}
	return OrderStatusUnknown, nil
}

func (d *Demo) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 || leverage > 100 {
		return &ExchangeError{Exchange: "demo", Code: "10002", Message: "invalid leverage"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.leverages[symbol] = leverage
	return nil
}
