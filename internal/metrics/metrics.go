package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics exposes application-level instruments for the credit engine.
type Metrics struct {
	creditChecks    *prometheus.CounterVec
	charges         *prometheus.CounterVec
	chargeFailures  *prometheus.CounterVec
	credits         *prometheus.CounterVec
	idempotencyHits *prometheus.CounterVec
	lockWaitSeconds prometheus.Histogram
	accountsCreated prometheus.Counter
	dailyResets     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		creditChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_credit_checks_total",
			Help: "Credit checks by outcome.",
		}, []string{"outcome"}),
		charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_charges_total",
			Help: "Successful charges by funding tier.",
		}, []string{"tier"}),
		chargeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_charge_failures_total",
			Help: "Failed charges by reason.",
		}, []string{"reason"}),
		credits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_credits_total",
			Help: "Credit additions by transaction type.",
		}, []string{"type"}),
		idempotencyHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditgate_idempotency_replays_total",
			Help: "Requests answered from an existing ledger row.",
		}, []string{"operation"}),
		lockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditgate_account_lock_wait_seconds",
			Help:    "Time spent acquiring the per-account row lock.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		accountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "creditgate_accounts_created_total",
			Help: "Accounts provisioned on first touch.",
		}),
		dailyResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "creditgate_daily_resets_total",
			Help: "Daily free allotment rollovers applied.",
		}),
	}

	reg.MustRegister(
		m.creditChecks,
		m.charges,
		m.chargeFailures,
		m.credits,
		m.idempotencyHits,
		m.lockWaitSeconds,
		m.accountsCreated,
		m.dailyResets,
	)
	return m
}

func (m *Metrics) RecordCreditCheck(outcome string) {
	if m == nil {
		return
	}
	m.creditChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCharge(tier string) {
	if m == nil {
		return
	}
	m.charges.WithLabelValues(tier).Inc()
}

func (m *Metrics) RecordChargeFailure(reason string) {
	if m == nil {
		return
	}
	m.chargeFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordCredit(txType string) {
	if m == nil {
		return
	}
	m.credits.WithLabelValues(txType).Inc()
}

func (m *Metrics) RecordIdempotencyReplay(operation string) {
	if m == nil {
		return
	}
	m.idempotencyHits.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWaitSeconds.Observe(d.Seconds())
}

func (m *Metrics) RecordAccountCreated() {
	if m == nil {
		return
	}
	m.accountsCreated.Inc()
}

func (m *Metrics) RecordDailyReset() {
	if m == nil {
		return
	}
	m.dailyResets.Inc()
}

func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func provideRegisterer(reg *prometheus.Registry) prometheus.Registerer {
	return reg
}

var Module = fx.Module("metrics",
	fx.Provide(
		NewRegistry,
		provideRegisterer,
		New,
	),
)
