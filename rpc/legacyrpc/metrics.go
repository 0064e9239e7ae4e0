// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package legacyrpc

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "keyrpc"

// Transport label values.
const (
	transportHTTP      = "http"
	transportWebsocket = "websocket"
)

// serverMetrics holds the prometheus collectors of one server.  Each server
// has its own registry so several servers can coexist in one process.
type serverMetrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	requestErrors *prometheus.CounterVec
	activeClients *prometheus.GaugeVec
	rejected      *prometheus.CounterVec
}

func newServerMetrics() *serverMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &serverMetrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rpc_requests_total",
			Help:      "The total number of handled RPC requests by method",
		}, []string{"method"}),
		requestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rpc_request_errors_total",
			Help:      "The total number of RPC requests answered with an error, by method and error code",
		}, []string{"method", "code"}),
		activeClients: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "rpc_active_clients",
			Help:      "The current number of connected clients by transport",
		}, []string{"transport"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rpc_rejected_clients_total",
			Help:      "The total number of clients turned away because the transport was at capacity",
		}, []string{"transport"}),
	}
}

// methodLabel bounds the label cardinality to the known methods.
func methodLabel(method string) string {
	if _, ok := rpcHandlers[method]; ok {
		return method
	}
	switch method {
	case "stop", "authenticate":
		return method
	}
	return "unknown"
}

// observe records the outcome of one request.
func (m *serverMetrics) observe(method string, jsonErr *btcjson.RPCError) {
	label := methodLabel(method)
	m.requests.WithLabelValues(label).Inc()
	if jsonErr != nil {
		code := strconv.Itoa(int(jsonErr.Code))
		m.requestErrors.WithLabelValues(label, code).Inc()
	}
}

// handler serves the registry in the prometheus text format.
func (m *serverMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// throttled wraps an http.Handler and limits the concurrent activity by
// responding to clients with HTTP 429 when the threshold is crossed.
func (m *serverMetrics) throttled(transport string, threshold int64, h http.Handler) http.Handler {
	var active int64
	gauge := m.activeClients.WithLabelValues(transport)
	rejected := m.rejected.WithLabelValues(transport)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt64(&active, 1)
		defer atomic.AddInt64(&active, -1)

		if current-1 >= threshold {
			log.Warnf("Reached threshold of %d concurrent active %s "+
				"clients", threshold, transport)
			rejected.Inc()
			http.Error(w, "429 Too Many Requests", http.StatusTooManyRequests)
			return
		}

		gauge.Inc()
		defer gauge.Dec()
		h.ServeHTTP(w, r)
	})
}
