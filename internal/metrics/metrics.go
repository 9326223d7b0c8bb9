// Package metrics defines the Prometheus collectors shared by the gateway
// and the notification service. Collectors are registered at import time via
// promauto and scraped from each service's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts handled HTTP requests by service, method and
	// status class.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swgestor_http_requests_total",
			Help: "Total HTTP requests processed.",
		},
		[]string{"service", "method", "status"},
	)

	// ProxiedRequestsTotal counts gateway requests forwarded downstream.
	ProxiedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swgestor_gateway_proxied_requests_total",
			Help: "Requests forwarded to a downstream service.",
		},
		[]string{"target"},
	)

	// StatsCacheHits and StatsCacheMisses track the aggregate stats cache.
	StatsCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swgestor_gateway_stats_cache_hits_total",
		Help: "Stats requests served from the cache.",
	})
	StatsCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swgestor_gateway_stats_cache_misses_total",
		Help: "Stats requests that fanned out downstream.",
	})

	// WebsocketConnections tracks currently registered realtime connections.
	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swgestor_websocket_connections",
		Help: "Currently connected realtime clients.",
	})

	// ChatMessagesTotal counts persisted chat messages.
	ChatMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swgestor_chat_messages_total",
		Help: "Chat messages persisted and broadcast.",
	})

	// NotificationsTotal counts broadcast notifications.
	NotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swgestor_notifications_total",
		Help: "Notifications broadcast to rooms.",
	})
)
