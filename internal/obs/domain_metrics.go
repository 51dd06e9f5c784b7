package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// LeadResolutionsTotal counts lead submissions by resolver outcome.
	LeadResolutionsTotal *prometheus.CounterVec
	// PointsAwardsTotal counts points-award attempts by action kind and result.
	PointsAwardsTotal *prometheus.CounterVec
	// SalesRecordedTotal counts recorded sales by result.
	SalesRecordedTotal *prometheus.CounterVec
	// ShiftsRecordedTotal counts recorded shifts by result.
	ShiftsRecordedTotal *prometheus.CounterVec
	// MarkPaidTotal counts batch mark-paid item outcomes.
	MarkPaidTotal *prometheus.CounterVec
	// PayrollSummaryDuration records aggregator scan latency in milliseconds.
	PayrollSummaryDuration prometheus.Histogram
	// LedgerRebuildTotal counts counter-reconciliation runs.
	LedgerRebuildTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		LeadResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_resolutions_total",
			Help:      "Count of lead submissions by resolver outcome.",
		}, []string{"outcome"})
		PointsAwardsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awards_total",
			Help:      "Count of points award attempts by action kind and result.",
		}, []string{"kind", "result"})
		SalesRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_recorded_total",
			Help:      "Count of recorded sales by result.",
		}, []string{"result"})
		ShiftsRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shifts_recorded_total",
			Help:      "Count of recorded shifts by result.",
		}, []string{"result"})
		MarkPaidTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mark_paid_total",
			Help:      "Count of mark-paid batch item outcomes.",
		}, []string{"kind", "result"})
		PayrollSummaryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payroll_summary_duration_ms",
			Help:      "Latency of compensation aggregator scans in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		})
		LedgerRebuildTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_rebuild_total",
			Help:      "Number of points-counter rebuilds from the ledger.",
		})

		mustRegisterCollector(reg, LeadResolutionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				LeadResolutionsTotal = v
			}
		})
		mustRegisterCollector(reg, PointsAwardsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PointsAwardsTotal = v
			}
		})
		mustRegisterCollector(reg, SalesRecordedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SalesRecordedTotal = v
			}
		})
		mustRegisterCollector(reg, ShiftsRecordedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ShiftsRecordedTotal = v
			}
		})
		mustRegisterCollector(reg, MarkPaidTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				MarkPaidTotal = v
			}
		})
		mustRegisterCollector(reg, PayrollSummaryDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				PayrollSummaryDuration = v
			}
		})
		mustRegisterCollector(reg, LedgerRebuildTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				LedgerRebuildTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, replace func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			replace(are.ExistingCollector)
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
