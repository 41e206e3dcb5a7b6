package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/hireloop/gatekeeper"
)

// Metrics holds the OpenTelemetry instruments used by the gate and the session clients.
type Metrics struct {
	// Gate metrics
	GateDecisionsTotal metric.Int64Counter
	GateRecoveredTotal metric.Int64Counter

	// Backend probe metrics
	ProbeAttemptsTotal metric.Int64Counter
	ProbeDuration      metric.Float64Histogram

	// Client-side session metrics
	SessionFetchesTotal     metric.Int64Counter
	LegacyCookieClearsTotal metric.Int64Counter
	VerificationChecksTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instruments bind to the global meter provider, which is a no-op until InitTelemetry runs.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.GateDecisionsTotal, _ = meter.Int64Counter(
		"gatekeeper.gate.decisions.total",
		metric.WithDescription("Total number of request gate decisions by outcome and reason"),
		metric.WithUnit("{decision}"),
	)

	m.GateRecoveredTotal, _ = meter.Int64Counter(
		"gatekeeper.gate.recovered.total",
		metric.WithDescription("Total number of panics recovered inside the request gate"),
		metric.WithUnit("{panic}"),
	)

	m.ProbeAttemptsTotal, _ = meter.Int64Counter(
		"gatekeeper.probe.attempts.total",
		metric.WithDescription("Total number of session endpoint attempts by candidate and result"),
		metric.WithUnit("{attempt}"),
	)

	m.ProbeDuration, _ = meter.Float64Histogram(
		"gatekeeper.probe.duration",
		metric.WithDescription("Duration of a full backend session probe"),
		metric.WithUnit("ms"),
	)

	m.SessionFetchesTotal, _ = meter.Int64Counter(
		"gatekeeper.session.fetches.total",
		metric.WithDescription("Total number of client session fetches by result"),
		metric.WithUnit("{fetch}"),
	)

	m.LegacyCookieClearsTotal, _ = meter.Int64Counter(
		"gatekeeper.session.legacy_cookie_clears.total",
		metric.WithDescription("Total number of legacy cookie clear requests issued"),
		metric.WithUnit("{request}"),
	)

	m.VerificationChecksTotal, _ = meter.Int64Counter(
		"gatekeeper.verification.checks.total",
		metric.WithDescription("Total number of email verification checks"),
		metric.WithUnit("{check}"),
	)

	return m
}
