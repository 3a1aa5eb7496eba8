package server

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/resolver"
	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/wire"
)

// Metrics counts served queries by outcome ("ok", "servfail" or "formerr")
// and upstream exchanges by outcome ("ok" or "error").
type Metrics struct {
	queries   *prometheus.CounterVec
	exchanges *prometheus.CounterVec
}

// NewMetrics builds the server's metric set and registers it with the given
// registerer. A nil registerer leaves the metrics unregistered, which tests
// and metric-less deployments use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yk_dns_resolver",
			Name:      "queries_total",
			Help:      "DNS queries served, by outcome.",
		}, []string{"outcome"}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yk_dns_resolver",
			Name:      "upstream_exchanges_total",
			Help:      "Upstream nameserver round trips, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.queries, m.exchanges)
	}
	return m
}

func (m *Metrics) count(outcome string) {
	m.queries.WithLabelValues(outcome).Inc()
}

// InstrumentExchanger wraps an upstream transport so every round trip is
// counted.
func (m *Metrics) InstrumentExchanger(next resolver.Exchanger) resolver.Exchanger {
	return &countingExchanger{next: next, exchanges: m.exchanges}
}

type countingExchanger struct {
	next      resolver.Exchanger
	exchanges *prometheus.CounterVec
}

func (c *countingExchanger) Exchange(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error) {
	response, err := c.next.Exchange(ctx, addr, query)
	if err != nil {
		c.exchanges.WithLabelValues("error").Inc()
		return nil, err
	}
	c.exchanges.WithLabelValues("ok").Inc()
	return response, nil
}
