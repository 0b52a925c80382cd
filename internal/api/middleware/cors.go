package middleware

import (
	"net/http"
	"os"
	"strings"
)

// allowedOrigins - домены, которым разрешены браузерные запросы к API.
// Дополнительные домены добавляются через CORS_ALLOWED_ORIGINS (через запятую).
// По умолчанию только локальные адреса операторской панели.
var allowedOrigins = map[string]bool{
	"http://localhost:3000": true,
	"http://127.0.0.1:3000": true,
	"http://localhost:8080": true,
	"http://127.0.0.1:8080": true,
	"http://localhost:5173": true, // Vite dev server
	"http://127.0.0.1:5173": true,
}

func init() {
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}
}

func isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	return allowedOrigins[origin]
}

// CORS - middleware для браузерного доступа операторской панели к API
//
// Назначение:
// Панель управления ботом живет на другом порту (dev server), браузеру
// нужны CORS заголовки, чтобы она могла дергать API и подписываться
// на websocket поток.
//
// Функции:
// - Access-Control-Allow-Origin только для доменов из allowedOrigins
// - credentials разрешены (Basic Auth заголовок проходит через CORS)
// - preflight (OPTIONS) отвечается сразу, без прохода по handler'ам
// - preflight кешируется на 24 часа
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if isOriginAllowed(origin) {
			// с credentials нельзя отдавать *, только конкретный домен
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else if origin == "" {
			// запросы без Origin (curl, скрипты оператора)
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		// неразрешенный origin не получает заголовков, браузер заблокирует ответ

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
