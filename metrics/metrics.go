// Package metrics exposes engine outcomes as Prometheus collectors.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/discipline-engine/discipline"
)

const namespace = "discipline"

// Collectors implements discipline.Observer on top of Prometheus counters.
// Label values are bounded by the engine's enums.
type Collectors struct {
	checkIns      *prometheus.CounterVec
	conversions   *prometheus.CounterVec
	escalations   *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	incidents     *prometheus.CounterVec
	failures      *prometheus.CounterVec
	notifyDropped prometheus.Counter
}

var _ discipline.Observer = (*Collectors)(nil)

// New builds unregistered collectors.
func New() *Collectors {
	return &Collectors{
		checkIns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "check_ins_total",
				Help:      "Check-ins processed, partitioned by outcome (on_time, gap, LATE_ARRIVAL, DIRECT_TARDINESS).",
			},
			[]string{"outcome"},
		),
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "formal_tardy_conversions_total",
				Help:      "Check-ins that produced formal tardies, partitioned by rule type.",
			},
			[]string{"rule_type"},
		),
		escalations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "escalations_total",
				Help:      "Escalation evaluations, partitioned by trigger, outcome and action.",
			},
			[]string{"trigger", "outcome", "action"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "record_decisions_total",
				Help:      "Disciplinary record transitions, partitioned by resulting status.",
			},
			[]string{"status"},
		),
		incidents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "incidents_raised_total",
				Help:      "Threshold incidents raised, partitioned by metric.",
			},
			[]string{"metric"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_failures_total",
				Help:      "Engine operations that failed after retries, partitioned by operation.",
			},
			[]string{"operation"},
		),
		notifyDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_dropped_total",
				Help:      "Notifications dropped because the dispatch queue was full or stopped.",
			},
		),
	}
}

// Register attaches the collectors to reg. Collectors already registered
// are skipped.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.checkIns,
		c.conversions,
		c.escalations,
		c.decisions,
		c.incidents,
		c.failures,
		c.notifyDropped,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func (c *Collectors) TardinessProcessed(outcome string) {
	c.checkIns.WithLabelValues(outcome).Inc()
}

func (c *Collectors) ConversionOccurred(t discipline.TardinessType) {
	c.conversions.WithLabelValues(string(t)).Inc()
}

func (c *Collectors) EscalationEvaluated(trigger discipline.TriggerType, outcome string, action discipline.ActionType) {
	c.escalations.WithLabelValues(string(trigger), outcome, string(action)).Inc()
}

func (c *Collectors) RecordDecided(status discipline.RecordStatus) {
	c.decisions.WithLabelValues(string(status)).Inc()
}

func (c *Collectors) IncidentRaised(metric discipline.Metric) {
	c.incidents.WithLabelValues(string(metric)).Inc()
}

func (c *Collectors) OperationFailed(op string) {
	c.failures.WithLabelValues(op).Inc()
}

// NotificationDropped counts one dropped notification.
func (c *Collectors) NotificationDropped() {
	c.notifyDropped.Inc()
}
