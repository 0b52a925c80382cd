package utils

import (
	"fmt"
	"time"
)

// ============ Границы периодов ============

// GetDayStart возвращает начало текущих суток в UTC.
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now())
}

// GetDayStartFrom возвращает начало суток для указанного момента в UTC.
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetWeekStart возвращает начало текущей ISO-недели (понедельник) в UTC.
func GetWeekStart() time.Time {
	return GetWeekStartFrom(time.Now())
}

// GetWeekStartFrom возвращает понедельник недели указанного момента в UTC.
func GetWeekStartFrom(t time.Time) time.Time {
	t = GetDayStartFrom(t)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // воскресенье
	}
	return t.AddDate(0, 0, -(weekday - 1))
}

// ============ Форматирование ============

// FormatDuration форматирует длительность в компактном виде для
// логов и сообщений оператору: "2h15m", "45m", "30s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh%dm", h, m)
}

// UnixMillis возвращает время в миллисекундах, формат таймстампов Bybit.
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromUnixMillis восстанавливает время из миллисекунд в UTC.
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
