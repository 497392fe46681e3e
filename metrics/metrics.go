// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type LedgerMetrics struct {
	operationCount     *prometheus.CounterVec
	operationLatencyMS *prometheus.HistogramVec
	pendingRequests    prometheus.Gauge
	fulfilledRequests  prometheus.Counter
}

func NewLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	m := LedgerMetrics{
		operationCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operation_count",
				Help: "Number of ledger operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationLatencyMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_latency_ms",
				Help:    "Latency of ledger operations in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"operation"},
		),
		pendingRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledger_pending_mint_requests",
				Help: "Number of unclaimed mint requests",
			},
		),
		fulfilledRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "oracle_fulfilled_request_count",
				Help: "Number of entropy requests fulfilled by the local oracle",
			},
		),
	}

	registerer.MustRegister(m.operationCount)
	registerer.MustRegister(m.operationLatencyMS)
	registerer.MustRegister(m.pendingRequests)
	registerer.MustRegister(m.fulfilledRequests)

	return &m
}

// Observe records one operation that started at start.
func (m *LedgerMetrics) Observe(op string, start time.Time, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.operationCount.WithLabelValues(op, outcome).Inc()
	m.operationLatencyMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
}

func (m *LedgerMetrics) SetPendingRequests(n int) {
	m.pendingRequests.Set(float64(n))
}

func (m *LedgerMetrics) AddFulfilled(n int) {
	m.fulfilledRequests.Add(float64(n))
}

// StartMetricsServer serves gatherer on port until ctx is done.
func StartMetricsServer(ctx context.Context, logger *zap.Logger, port uint16, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Info("Starting metrics server", zap.Uint16("port", port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	return nil
}
