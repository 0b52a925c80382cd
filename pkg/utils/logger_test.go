package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newCaptureLogger создает логгер, пишущий в буфер, для проверки вывода
func newCaptureLogger(buf *bytes.Buffer, level zapcore.Level) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			MessageKey: "message",
			LevelKey:   "level",
		}),
		zapcore.AddSync(buf),
		level,
	)
	zl := zap.New(core)
	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// ============================================================
// Тесты InitLogger
// ============================================================

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		config LogConfig
	}{
		{"empty config uses defaults", LogConfig{}},
		{"json format", LogConfig{Level: "info", Format: "json"}},
		{"text format", LogConfig{Level: "debug", Format: "text"}},
		{"development mode", LogConfig{Level: "debug", Format: "text", Development: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := InitLogger(tt.config)
			if logger == nil {
				t.Fatal("InitLogger returned nil")
			}
			if logger.Logger == nil || logger.sugar == nil {
				t.Fatal("InitLogger returned incomplete logger")
			}
		})
	}
}

func TestInitLogger_FileOutput(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "tradebot_log_*.log")
	if err != nil {
		t.Fatalf("не удалось создать временный файл: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	logger := InitLogger(LogConfig{
		Level:  "info",
		Format: "json",
		Output: tmpFile.Name(),
	})

	logger.Info("position opened", Symbol("BTCUSDT"), Price(42000))
	logger.Sync()

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		t.Fatalf("не удалось прочитать лог файл: %v", err)
	}
	if len(content) == 0 {
		t.Fatal("лог файл пуст")
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Errorf("запись лога не является валидным JSON: %v", err)
	}
}

func TestInitLogger_InvalidFileOutput(t *testing.T) {
	// недоступный путь не должен ронять процесс, ожидаем fallback на stderr
	logger := InitLogger(LogConfig{
		Level:  "info",
		Output: "/nonexistent/directory/log.txt",
	})

	if logger == nil {
		t.Fatal("InitLogger returned nil for invalid output")
	}
}

// ============================================================
// Тесты глобального логгера
// ============================================================

func TestGlobalLogger(t *testing.T) {
	globalMu.Lock()
	globalLogger = nil
	globalMu.Unlock()

	logger := GetGlobalLogger()
	if logger == nil {
		t.Fatal("GetGlobalLogger returned nil")
	}

	if logger != GetGlobalLogger() {
		t.Error("повторный вызов GetGlobalLogger вернул другой логгер")
	}
	if logger != L() {
		t.Error("L() вернул другой логгер")
	}
}

func TestInitGlobalLogger(t *testing.T) {
	logger := InitGlobalLogger(LogConfig{Level: "debug", Format: "text"})
	if logger == nil {
		t.Fatal("InitGlobalLogger returned nil")
	}

	if GetGlobalLogger() != logger {
		t.Error("глобальный логгер не был установлен")
	}
}

func TestSetGlobalLogger(t *testing.T) {
	logger := InitLogger(LogConfig{Level: "warn"})
	SetGlobalLogger(logger)

	if GetGlobalLogger() != logger {
		t.Error("SetGlobalLogger не установил логгер")
	}
}

// ============================================================
// Тесты parseLevel
// ============================================================

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"invalid", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, ожидали %v", tt.input, result, tt.expected)
			}
		})
	}
}

// ============================================================
// Тесты методов Logger
// ============================================================

func TestLogger_With(t *testing.T) {
	logger := InitLogger(LogConfig{Level: "info"})

	newLogger := logger.With(zap.String("key", "value"))
	if newLogger == nil {
		t.Fatal("With returned nil")
	}
	if newLogger == logger {
		t.Error("With должен вернуть новый логгер")
	}
}

func TestLogger_WithHelpers(t *testing.T) {
	logger := InitLogger(LogConfig{Level: "info"})

	tests := []struct {
		name   string
		helper func() *Logger
	}{
		{"WithComponent", func() *Logger { return logger.WithComponent("risk_gate") }},
		{"WithExchange", func() *Logger { return logger.WithExchange("bybit") }},
		{"WithSymbol", func() *Logger { return logger.WithSymbol("BTCUSDT") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newLogger := tt.helper()
			if newLogger == nil {
				t.Fatalf("%s returned nil", tt.name)
			}
			if newLogger == logger {
				t.Errorf("%s должен вернуть новый логгер", tt.name)
			}
		})
	}
}

// ============================================================
// Тесты глобальных функций логирования
// ============================================================

func TestGlobalLoggingFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(newCaptureLogger(&buf, zapcore.DebugLevel))

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	GetGlobalLogger().Sync()
	output := buf.String()

	for _, msg := range []string{"debug message", "info message", "warn message", "error message"} {
		if !strings.Contains(output, msg) {
			t.Errorf("сообщение %q не найдено в выводе", msg)
		}
	}
}

func TestGlobalFormattedLoggingFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(newCaptureLogger(&buf, zapcore.DebugLevel))

	Debugf("filled %d of %d", 1, 2)
	Infof("target %d hit", 2)
	Warnf("retry attempt %d", 3)
	Errorf("order %s rejected", "MOCK-1")

	GetGlobalLogger().Sync()
	output := buf.String()

	for _, msg := range []string{"filled 1 of 2", "target 2 hit", "retry attempt 3", "order MOCK-1 rejected"} {
		if !strings.Contains(output, msg) {
			t.Errorf("сообщение %q не найдено в выводе", msg)
		}
	}
}

// ============================================================
// Тесты конструкторов полей
// ============================================================

func TestFieldConstructors(t *testing.T) {
	var buf bytes.Buffer
	logger := newCaptureLogger(&buf, zapcore.InfoLevel)

	logger.Info("trade",
		Exchange("bybit"),
		Symbol("BTCUSDT"),
		OrderID("order-456"),
		Price(25000.50),
		Volume(0.5),
		Target(2),
		PNL(100.25),
		Side("long"),
		State("active"),
		Latency(15.5),
		RequestID("req-789"),
		Component("executor"),
	)

	logger.Sync()
	output := buf.String()

	expectedFields := []string{
		"exchange", "bybit",
		"symbol", "BTCUSDT",
		"order_id", "order-456",
		"price", "25000.5",
		"volume", "0.5",
		"target", "2",
		"pnl", "100.25",
		"side", "long",
		"state", "active",
		"latency_ms", "15.5",
		"request_id", "req-789",
		"component", "executor",
	}

	for _, field := range expectedFields {
		if !strings.Contains(output, field) {
			t.Errorf("поле %q не найдено в выводе: %s", field, output)
		}
	}
}

func TestFieldsToInterface(t *testing.T) {
	fields := []zap.Field{
		zap.String("key1", "value1"),
		zap.Int("key2", 42),
	}

	result := fieldsToInterface(fields)

	if len(result) != 4 {
		t.Fatalf("ожидали 4 элемента, получили %d", len(result))
	}
	if result[0] != "key1" || result[2] != "key2" {
		t.Errorf("ключи не на своих местах: %v", result)
	}
}

// ============================================================
// Бенчмарки
// ============================================================

func BenchmarkLogger_Info(b *testing.B) {
	logger := InitLogger(LogConfig{
		Level:  "info",
		Format: "json",
		Output: "/dev/null",
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("tick",
			Symbol("BTCUSDT"),
			Int("count", i),
		)
	}
}

func BenchmarkLogger_With(b *testing.B) {
	logger := InitLogger(LogConfig{
		Level:  "info",
		Format: "json",
		Output: "/dev/null",
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		child := logger.With(
			zap.String("exchange", "bybit"),
			zap.String("symbol", "BTCUSDT"),
		)
		child.Info("tick")
	}
}
