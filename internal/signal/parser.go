package signal

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// ErrNoSignal возвращается, когда текст не содержит торгового сигнала.
// Каналы с сигналами публикуют и обычные сообщения - это не ошибка разбора.
var ErrNoSignal = errors.New("no trading signal found")

// ============ Регулярные выражения формата сигналов ============

var (
	// #BTC, $BTC, BTC/USDT, BTC-USDT, BTCUSDT
	symbolRe = regexp.MustCompile(`(?i)(?:[#$]([A-Z0-9]{2,20})|([A-Z0-9]{2,20})[/\-_]?USDT)\b`)

	sideLongRe  = regexp.MustCompile(`(?i)\b(LONG|BUY)\b`)
	sideShortRe = regexp.MustCompile(`(?i)\b(SHORT|SELL)\b`)

	// Entry: 100.5 или Entry 100 - 105 (диапазон)
	entryRe = regexp.MustCompile(`(?i)entry[:\s]+\$?([0-9]+(?:\.[0-9]+)?)(?:\s*[-–]\s*\$?([0-9]+(?:\.[0-9]+)?))?`)

	// Target 1: 105 / TP1 105 / T1: 105
	targetRe = regexp.MustCompile(`(?i)\b(?:target|tp|t)\s*([0-9]+)[:\s]+\$?([0-9]+(?:\.[0-9]+)?)`)

	// Stop loss: 95 / SL: 95 / Stop: 95
	stopRe = regexp.MustCompile(`(?i)\b(?:stop\s*loss|stop|sl)[:\s]+\$?([0-9]+(?:\.[0-9]+)?)`)
)

// Parser разбирает тексты сигналов из Telegram-каналов и API
// в структурированный models.Signal.
type Parser struct {
	source string // проставляется в Signal.Source
}

// NewParser создает парсер для указанного источника сигналов
func NewParser(source string) *Parser {
	if source == "" {
		source = models.SignalSourceManual
	}
	return &Parser{source: source}
}

// Parse разбирает текст сигнала. Возвращает ErrNoSignal, если текст
// не похож на сигнал (нет символа или направления) - вызывающий код
// такие сообщения молча пропускает.
func (p *Parser) Parse(text string) (*models.Signal, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoSignal
	}

	symbol := extractSymbol(text)
	if symbol == "" {
		return nil, ErrNoSignal
	}

	var side string
	switch {
	case sideLongRe.MatchString(text):
		side = models.SideLong
	case sideShortRe.MatchString(text):
		side = models.SideShort
	default:
		return nil, ErrNoSignal
	}

	// Символ и направление есть - дальше текст считается сигналом,
	// и проблемы разбора становятся ошибками
	entry, err := extractEntry(text)
	if err != nil {
		return nil, err
	}

	targets := extractTargets(text)
	if len(targets) == 0 {
		return nil, fmt.Errorf("signal for %s has no targets", symbol)
	}

	stopLoss := extractStop(text)

	sig := &models.Signal{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: entry,
		Targets:    targets,
		StopLoss:   stopLoss,
		Source:     p.source,
		ReceivedAt: time.Now(),
	}
	if err := sig.Validate(); err != nil {
		return nil, fmt.Errorf("parsed signal is invalid: %w", err)
	}
	return sig, nil
}

// extractSymbol ищет тикер: маркер (#BTC, $BTC) или суффикс USDT.
// Слова без явной пометки тикером не считаются.
func extractSymbol(text string) string {
	if m := symbolRe.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		return utils.NormalizeSymbol(raw)
	}
	return ""
}

// extractEntry возвращает цену входа. Диапазон сворачивается
// в середину: сигналы дают зону входа, бот входит по рынку.
func extractEntry(text string) (float64, error) {
	m := entryRe.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("entry price not found")
	}
	low, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entry price %q", m[1])
	}
	if m[2] == "" {
		return low, nil
	}
	high, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entry price %q", m[2])
	}
	return (low + high) / 2, nil
}

// extractTargets собирает нумерованные цели. Дубль номера
// перезаписывается последним значением.
func extractTargets(text string) map[int]float64 {
	targets := make(map[int]float64)
	for _, m := range targetRe.FindAllStringSubmatch(text, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 {
			continue
		}
		price, err := strconv.ParseFloat(m[2], 64)
		if err != nil || price <= 0 {
			continue
		}
		targets[idx] = price
	}
	return targets
}

// extractStop возвращает цену стоп-лосса, 0 если не указан
func extractStop(text string) float64 {
	m := stopRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	price, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return price
}
