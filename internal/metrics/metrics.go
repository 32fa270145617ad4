package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerpro_registrations_total",
		Help: "Customer registrations by license tier and outcome",
	}, []string{"tier", "outcome"}) // outcome: success, duplicate, invalid, failed

	PaymentVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerpro_payment_verifications_total",
		Help: "Synchronous payment verifications by outcome",
	}, []string{"outcome"}) // activated, replayed, bad_signature, not_captured, failed

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerpro_webhook_events_total",
		Help: "Gateway webhook deliveries by event name and outcome",
	}, []string{"event", "outcome"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerpro_notifications_total",
		Help: "Customer notifications by kind and outcome",
	}, []string{"kind", "outcome"}) // outcome: queued, sent, failed

	LicenseVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerpro_license_verifications_total",
		Help: "License key verifications by validity",
	}, []string{"valid"})

	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerpro_downloads_total",
		Help: "Recorded application downloads by platform",
	}, []string{"platform"})

	LicensesExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerpro_licenses_expired_total",
		Help: "Licenses moved to expired by the background sweep",
	})

	RealtimeClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledgerpro_realtime_clients",
		Help: "Connected websocket clients by audience",
	}, []string{"audience"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgerpro_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
