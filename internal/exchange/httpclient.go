// Package exchange предоставляет шлюз к бирже для исполнения и мониторинга позиций.
package exchange

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// Таймауты и пул соединений HTTP клиента.
// Цикл мониторинга опрашивает биржу каждые ~15 секунд, Keep-Alive
// держит соединение тёплым между проходами - без него каждый тик
// платит за TCP+TLS handshake заново.
const (
	connectTimeout      = 5 * time.Second
	responseTimeout     = 10 * time.Second
	totalTimeout        = 30 * time.Second
	tlsHandshakeTimeout = 5 * time.Second
	keepAliveInterval   = 30 * time.Second

	maxIdleConns        = 20
	maxIdleConnsPerHost = 10
	maxConnsPerHost     = 20
	idleConnTimeout     = 90 * time.Second
)

// HTTPClient - HTTP клиент с пулом соединений для биржевого REST API
type HTTPClient struct {
	client *http.Client
}

var (
	globalClient     *HTTPClient
	globalClientOnce sync.Once
)

// GetGlobalHTTPClient возвращает общий HTTP клиент.
// Один пул соединений на процесс: шлюз, цикл опроса и операторские
// команды ходят к одному хосту биржи.
func GetGlobalHTTPClient() *HTTPClient {
	globalClientOnce.Do(func() {
		globalClient = NewHTTPClient()
	})
	return globalClient
}

// NewHTTPClient создаёт клиент с таймаутами, подобранными под биржевой REST
func NewHTTPClient() *HTTPClient {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: keepAliveInterval,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,

		TLSHandshakeTimeout: tlsHandshakeTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},

		// сжатие не нужно, ответы биржи маленькие
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: responseTimeout,
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   totalTimeout, // страховка поверх контекстных таймаутов
		},
	}
}

// Do выполняет HTTP запрос
func (hc *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	return hc.client.Do(req)
}

// GetClient возвращает базовый http.Client
func (hc *HTTPClient) GetClient() *http.Client {
	return hc.client
}

// Close закрывает idle соединения. Вызывается при graceful shutdown.
func (hc *HTTPClient) Close() {
	if transport, ok := hc.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// CloseGlobalClient закрывает глобальный клиент при остановке процесса
func CloseGlobalClient() {
	if globalClient != nil {
		globalClient.Close()
	}
}
