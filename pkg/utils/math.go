package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ============ Округление объёмов ============

// RoundToLotSize округляет количество вниз до шага лота биржи.
// Округление всегда вниз: заявка на больший объём, чем позволяет
// баланс, будет отклонена биржей.
func RoundToLotSize(qty, lotSize float64) float64 {
	if lotSize <= 0 {
		return qty
	}
	steps := math.Floor(qty / lotSize)
	return steps * lotSize
}

// RoundToLotSizeUp округляет количество вверх до шага лота.
// Используется при закрытии позиции, чтобы не оставлять "пыль".
func RoundToLotSizeUp(qty, lotSize float64) float64 {
	if lotSize <= 0 {
		return qty
	}
	steps := math.Ceil(qty / lotSize)
	return steps * lotSize
}

// RoundToLotSizeNearest округляет количество до ближайшего шага лота.
func RoundToLotSizeNearest(qty, lotSize float64) float64 {
	if lotSize <= 0 {
		return qty
	}
	steps := math.Round(qty / lotSize)
	return steps * lotSize
}

// FormatQty форматирует количество с точностью шага лота,
// без хвостовых нулей. Биржи отклоняют заявки с лишними знаками.
func FormatQty(qty, lotSize float64) string {
	decimals := 0
	if lotSize > 0 && lotSize < 1 {
		s := strconv.FormatFloat(lotSize, 'f', -1, 64)
		if idx := strings.IndexByte(s, '.'); idx >= 0 {
			decimals = len(s) - idx - 1
		}
	}
	s := strconv.FormatFloat(qty, 'f', decimals, 64)
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// ============ PNL ============

// CalculatePNL считает реализованный PNL закрытого (частично закрытого)
// объёма. Для лонга прибыль при росте цены, для шорта — при падении.
func CalculatePNL(side string, entryPrice, exitPrice, qty float64) float64 {
	switch strings.ToLower(side) {
	case "long", "buy":
		return (exitPrice - entryPrice) * qty
	case "short", "sell":
		return (entryPrice - exitPrice) * qty
	default:
		return 0
	}
}

// CalculatePNLPercent считает PNL в процентах от размера позиции
// с учётом плеча.
func CalculatePNLPercent(side string, entryPrice, exitPrice, leverage float64) float64 {
	if entryPrice <= 0 {
		return 0
	}
	move := (exitPrice - entryPrice) / entryPrice * 100
	if strings.ToLower(side) == "short" || strings.ToLower(side) == "sell" {
		move = -move
	}
	if leverage > 0 {
		move *= leverage
	}
	return move
}

// ============ Разбиение объёма ============

// SplitVolume делит количество на n равных частей с округлением
// каждой части вниз до шага лота. Остаток добавляется к последней
// части, чтобы сумма не превышала исходный объём.
func SplitVolume(qty float64, n int, lotSize float64) []float64 {
	if n <= 0 {
		return nil
	}
	parts := make([]float64, n)
	per := RoundToLotSize(qty/float64(n), lotSize)
	used := 0.0
	for i := 0; i < n-1; i++ {
		parts[i] = per
		used += per
	}
	parts[n-1] = RoundToLotSize(qty-used, lotSize)
	return parts
}

// ============ Общие хелперы ============

// Abs возвращает модуль числа.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Min возвращает меньшее из двух чисел.
func Min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Max возвращает большее из двух чисел.
func Max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

// AlmostEqual сравнивает два float с допуском.
func AlmostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// FormatUSD форматирует сумму в долларах для логов и уведомлений.
func FormatUSD(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}
