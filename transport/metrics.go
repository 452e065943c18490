package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authclient",
		Subsystem: "transport",
		Name:      "requests_total",
		Help:      "Outbound requests by result class.",
	}, []string{"result"})

	refreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authclient",
		Subsystem: "transport",
		Name:      "refreshes_total",
		Help:      "Token refresh attempts by outcome.",
	}, []string{"outcome"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "authclient",
		Subsystem: "transport",
		Name:      "retries_total",
		Help:      "Requests replayed after a successful refresh.",
	})

	sessionResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "authclient",
		Subsystem: "transport",
		Name:      "session_resets_total",
		Help:      "Hard session resets forced by unrecoverable refresh failures.",
	})
)

const (
	resultOK           = "ok"
	resultUnauthorized = "unauthorized"
	resultError        = "error"
)
