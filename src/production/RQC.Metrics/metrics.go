package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileCycles counts reconciliation cycles by outcome ("ok" or
	// "error").
	ReconcileCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rqc_reconcile_cycles_total",
		Help: "Reconciliation cycles executed, labelled by outcome.",
	}, []string{"result"})

	// CommandsPublished counts device commands handed to the broker,
	// labelled by command tag.
	CommandsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rqc_commands_published_total",
		Help: "Device commands published to the MQTT broker.",
	}, []string{"cmd"})

	// PublishErrors counts per-message publish failures and failed
	// connect attempts.
	PublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rqc_publish_errors_total",
		Help: "MQTT connect and publish failures.",
	})

	// IssuerRequests counts on-demand issuer requests by endpoint and
	// HTTP status class.
	IssuerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rqc_issuer_requests_total",
		Help: "Command issuer HTTP requests, labelled by endpoint and result.",
	}, []string{"endpoint", "result"})
)
