package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tradebot/pkg/ratelimit"
	"tradebot/pkg/retry"
)

// Быстрый JSON-кодек для горячего пути (разбор ответов биржи)
var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	bybitBaseURL    = "https://api.bybit.com"
	bybitTestnetURL = "https://api-testnet.bybit.com"
	bybitRecvWindow = "5000"

	// Лимиты Bybit v5: 10 req/s на приватные endpoint'ы по умолчанию
	bybitRateLimit = 10.0
	bybitBurst     = 20.0
)

// Bybit реализует интерфейс Gateway для биржи Bybit (v5 REST API).
type Bybit struct {
	apiKey    string
	secretKey string
	baseURL   string

	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	readRetry  retry.Config
}

// NewBybit создает новый экземпляр Bybit.
// Использует глобальный HTTP клиент с connection pooling и оптимизированными таймаутами.
func NewBybit(apiKey, secretKey string, testnet bool) *Bybit {
	baseURL := bybitBaseURL
	if testnet {
		baseURL = bybitTestnetURL
	}
	return &Bybit{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: GetGlobalHTTPClient().GetClient(),
		limiter:    ratelimit.NewRateLimiter(bybitRateLimit, bybitBurst),
		readRetry:  retry.NetworkConfig(),
	}
}

func (b *Bybit) Name() string {
	return "bybit"
}

// sign создает подпись для запроса к Bybit API v5
func (b *Bybit) sign(timestamp string, params string) string {
	message := timestamp + b.apiKey + bybitRecvWindow + params
	h := hmac.New(sha256.New, []byte(b.secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет HTTP запрос к Bybit API.
// Единая точка обработки ответа: retCode != 0 превращается в ExchangeError,
// ядро никогда не видит сырой JSON.
func (b *Bybit) doRequest(ctx context.Context, method, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody string
	var reqURL string

	if method == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		reqBody = query.Encode()
		if reqBody != "" {
			reqURL = b.baseURL + endpoint + "?" + reqBody
		} else {
			reqURL = b.baseURL + endpoint
		}
	} else {
		reqURL = b.baseURL + endpoint
		if len(params) > 0 {
			jsonBytes, _ := json.Marshal(params)
			reqBody = string(jsonBytes)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if signed {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		signature := b.sign(timestamp, reqBody)

		req.Header.Set("X-BAPI-API-KEY", b.apiKey)
		req.Header.Set("X-BAPI-SIGN", signature)
		req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
		req.Header.Set("X-BAPI-RECV-WINDOW", bybitRecvWindow)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		// Сетевые ошибки считаем временными - вызывающий может повторить
		return nil, retry.Temporary(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Temporary(err)
	}

	if resp.StatusCode >= 500 {
		return nil, retry.Temporary(fmt.Errorf("bybit: server error %d", resp.StatusCode))
	}

	// Проверяем базовый ответ
	var baseResp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, err
	}

	if baseResp.RetCode != 0 {
		// Явный отказ биржи - окончательная ошибка, повторять бессмысленно
		return nil, retry.Permanent(&ExchangeError{
			Exchange: "bybit",
			Code:     strconv.Itoa(baseResp.RetCode),
			Message:  baseResp.RetMsg,
		})
	}

	return body, nil
}

// doRead выполняет идемпотентный GET с повтором при временных сбоях.
// Ордерные операции повторов не получают - дубликат ордера хуже отказа.
func (b *Bybit) doRead(ctx context.Context, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	return retry.DoWithResult(ctx, func() ([]byte, error) {
		return b.doRequest(ctx, http.MethodGet, endpoint, params, signed)
	}, b.readRetry)
}

func (b *Bybit) GetWalletBalance(ctx context.Context) (*Balance, error) {
	params := map[string]string{
		"accountType": "UNIFIED",
		"coin":        "USDT",
	}

	body, err := b.doRead(ctx, "/v5/account/wallet-balance", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				TotalWalletBalance    string `json:"totalWalletBalance"`
				TotalMarginBalance    string `json:"totalMarginBalance"`
				TotalAvailableBalance string `json:"totalAvailableBalance"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	if len(resp.Result.List) == 0 {
		return nil, fmt.Errorf("bybit: wallet balance not found")
	}

	acc := resp.Result.List[0]
	wallet, _ := strconv.ParseFloat(acc.TotalWalletBalance, 64)
	margin, _ := strconv.ParseFloat(acc.TotalMarginBalance, 64)
	available, _ := strconv.ParseFloat(acc.TotalAvailableBalance, 64)

	return &Balance{
		TotalWalletBalance:    wallet,
		TotalMarginBalance:    margin,
		TotalAvailableBalance: available,
	}, nil
}

func (b *Bybit) GetSymbolRules(ctx context.Context, symbol string) (*SymbolRules, error) {
	params := map[string]string{
		"category": "linear",
		"symbol":   symbol,
	}

	body, err := b.doRead(ctx, "/v5/market/instruments-info", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol        string `json:"symbol"`
				LotSizeFilter struct {
					MinOrderQty string `json:"minOrderQty"`
					MaxOrderQty string `json:"maxOrderQty"`
					QtyStep     string `json:"qtyStep"`
				} `json:"lotSizeFilter"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	if len(resp.Result.List) == 0 {
		return nil, fmt.Errorf("bybit: instrument info not found for %s", symbol)
	}

	info := resp.Result.List[0]
	minQty, _ := strconv.ParseFloat(info.LotSizeFilter.MinOrderQty, 64)
	maxQty, _ := strconv.ParseFloat(info.LotSizeFilter.MaxOrderQty, 64)
	qtyStep, _ := strconv.ParseFloat(info.LotSizeFilter.QtyStep, 64)

	return &SymbolRules{
		Symbol:  symbol,
		QtyStep: qtyStep,
		MinQty:  minQty,
		MaxQty:  maxQty,
	}, nil
}

func (b *Bybit) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]string{
		"category": "linear",
		"symbol":   symbol,
	}

	body, err := b.doRead(ctx, "/v5/market/tickers", params, false)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol    string `json:"symbol"`
				LastPrice string `json:"lastPrice"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}

	if len(resp.Result.List) == 0 {
		return 0, fmt.Errorf("bybit: ticker not found for %s", symbol)
	}

	lastPrice, _ := strconv.ParseFloat(resp.Result.List[0].LastPrice, 64)
	return lastPrice, nil
}

func (b *Bybit) GetPositionSize(ctx context.Context, symbol string) (float64, error) {
	params := map[string]string{
		"category": "linear",
		"symbol":   symbol,
	}

	body, err := b.doRead(ctx, "/v5/position/list", params, true)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol string `json:"symbol"`
				Size   string `json:"size"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}

	total := 0.0
	for _, p := range resp.Result.List {
		if p.Symbol != symbol {
			continue
		}
		size, _ := strconv.ParseFloat(p.Size, 64)
		total += size
	}

	return total, nil
}

// bybitSide конвертирует внутреннее направление в формат Bybit
func bybitSide(side string) string {
	if side == SideSell {
		return "Sell"
	}
	return "Buy"
}

func (b *Bybit) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64, positionIdx int) (*OrderResult, error) {
	params := map[string]string{
		"category":    "linear",
		"symbol":      symbol,
		"side":        bybitSide(side),
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(qty, 'f', -1, 64),
		"timeInForce": "IOC",
		"positionIdx": strconv.Itoa(positionIdx),
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/v5/order/create", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			OrderId string `json:"orderId"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	order := &OrderResult{
		OrderID:  resp.Result.OrderId,
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
	}

	// Получаем информацию об исполнении; неудача не фатальна
	if filledQty, avgPrice, err := b.getOrderExecution(ctx, symbol, resp.Result.OrderId); err == nil {
		order.FilledQty = filledQty
		order.AvgFillPrice = avgPrice
	} else {
		order.FilledQty = qty
	}

	return order, nil
}

func (b *Bybit) PlaceLimitOrder(ctx context.Context, symbol, side string, qty, price float64, reduceOnly bool, positionIdx int) (*OrderResult, error) {
	params := map[string]string{
		"category":    "linear",
		"symbol":      symbol,
		"side":        bybitSide(side),
		"orderType":   "Limit",
		"qty":         strconv.FormatFloat(qty, 'f', -1, 64),
		"price":       strconv.FormatFloat(price, 'f', -1, 64),
		"timeInForce": "GTC",
		"positionIdx": strconv.Itoa(positionIdx),
	}
	if reduceOnly {
		params["reduceOnly"] = "true"
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/v5/order/create", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			OrderId string `json:"orderId"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return &OrderResult{
		OrderID:  resp.Result.OrderId,
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
	}, nil
}

func (b *Bybit) SetTradingStop(ctx context.Context, symbol, stopPrice string, positionIdx int) error {
	params := map[string]string{
		"category":    "linear",
		"symbol":      symbol,
		"stopLoss":    stopPrice,
		"positionIdx": strconv.Itoa(positionIdx),
	}

	_, err := b.doRequest(ctx, http.MethodPost, "/v5/position/trading-stop", params, true)
	return err
}

func (b *Bybit) PlaceConditionalStop(ctx context.Context, symbol, side string, qty, triggerPrice float64, positionIdx int) (*OrderResult, error) {
	// Направление триггера: стоп для long срабатывает при падении цены (2),
	// для short - при росте (1)
	triggerDirection := "2"
	if side == SideBuy {
		triggerDirection = "1"
	}

	params := map[string]string{
		"category":         "linear",
		"symbol":           symbol,
		"side":             bybitSide(side),
		"orderType":        "Market",
		"qty":              strconv.FormatFloat(qty, 'f', -1, 64),
		"triggerPrice":     strconv.FormatFloat(triggerPrice, 'f', -1, 64),
		"triggerDirection": triggerDirection,
		"triggerBy":        "LastPrice",
		"reduceOnly":       "true",
		"timeInForce":      "IOC",
		"positionIdx":      strconv.Itoa(positionIdx),
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/v5/order/create", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			OrderId string `json:"orderId"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return &OrderResult{
		OrderID:  resp.Result.OrderId,
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
	}, nil
}

func (b *Bybit) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]string{
		"category": "linear",
		"symbol":   symbol,
		"orderId":  orderID,
	}

	_, err := b.doRequest(ctx, http.MethodPost, "/v5/order/cancel", params, true)
	return err
}

func (b *Bybit) GetOrderStatus(ctx context.Context, symbol, orderID string) (OrderStatus, error) {
	params := map[string]string{
		"category": "linear",
		"symbol":   symbol,
		"orderId":  orderID,
	}

	body, err := b.doRead(ctx, "/v5/order/realtime", params, true)
	if err != nil {
		return OrderStatusUnknown, err
	}

	var resp struct {
		Result struct {
			List []struct {
				OrderStatus string `json:"orderStatus"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return OrderStatusUnknown, err
	}

	if len(resp.Result.List) == 0 {
		return OrderStatusUnknown, nil
	}

	switch resp.Result.List[0].OrderStatus {
	case "Filled":
		return OrderStatusFilled, nil
	case "PartiallyFilled":
		return OrderStatusPartiallyFilled, nil
	case "New", "Untriggered", "Triggered":
		return OrderStatusOpen, nil
	case "Cancelled", "Deactivated", "Rejected":
		return OrderStatusCancelled, nil
	default:
		return OrderStatusUnknown, nil
	}
}

func (b *Bybit) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	params := map[string]string{
		"category":     "linear",
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}

	_, err := b.doRequest(ctx, http.MethodPost, "/v5/position/set-leverage", params, true)
	return err
}

// getOrderExecution получает информацию об исполнении ордера
func (b *Bybit) getOrderExecution(ctx context.Context, symbol, orderID string) (float64, float64, error) {
	params := map[string]string{
		"category": "linear",
		"symbol":   symbol,
		"orderId":  orderID,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/order/realtime", params, true)
	if err != nil {
		return 0, 0, err
	}

	var resp struct {
		Result struct {
			List []struct {
				CumExecQty string `json:"cumExecQty"`
				AvgPrice   string `json:"avgPrice"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, 0, err
	}

	if len(resp.Result.List) == 0 {
		return 0, 0, fmt.Errorf("order not found")
	}

	o := resp.Result.List[0]
	filledQty, _ := strconv.ParseFloat(o.CumExecQty, 64)
	avgPrice, _ := strconv.ParseFloat(o.AvgPrice, 64)

	return filledQty, avgPrice, nil
}
