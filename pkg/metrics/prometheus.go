package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pilot"

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	llmRequestsTotal   *prometheus.CounterVec
	llmTokensTotal     *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	toolExecutions     *prometheus.CounterVec
	toolDuration       *prometheus.HistogramVec
	toolSkipped        prometheus.Counter
	decisionsTotal     *prometheus.CounterVec
	diffAppliesTotal   *prometheus.CounterVec
	turnsTotal         *prometheus.CounterVec
	rollbackTotal      *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder on its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		llmRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Total number of agent invocations by model and status",
			},
			[]string{"model", "status"},
		),
		llmTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Total number of tokens used in agent invocations",
			},
			[]string{"model", "type"},
		),
		llmRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Duration of agent invocations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		toolExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_executions_total",
				Help:      "Tool executions by tool and status",
			},
			[]string{"tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_execution_duration_seconds",
				Help:      "Duration of tool executions in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		toolSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_requests_skipped_total",
				Help:      "Tool requests not processed because an earlier request in the same response was",
			},
		),
		decisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Human answers to review prompts",
			},
			[]string{"kind", "decision"},
		),
		diffAppliesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diff_applies_total",
				Help:      "Diff applications by status",
			},
			[]string{"status"},
		),
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Finished turns by outcome",
			},
			[]string{"outcome"},
		),
		rollbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollback_total",
				Help:      "Self-update rollback protocol outcomes",
			},
			[]string{"outcome"},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "Turn state machine transitions",
			},
			[]string{"from", "to"},
		),
	}
}

// Registry returns the registry holding the recorder's collectors.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// ObserveLLMRequest records metrics for a completed agent invocation.
func (p *PrometheusRecorder) ObserveLLMRequest(model string, promptTokens, completionTokens int, success bool, duration time.Duration) {
	p.llmRequestsTotal.WithLabelValues(model, status(success)).Inc()
	// Tokens only on success.
	if success {
		p.llmTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
		p.llmTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	p.llmRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// ObserveToolExecution records one tool run.
func (p *PrometheusRecorder) ObserveToolExecution(tool string, success bool, duration time.Duration) {
	p.toolExecutions.WithLabelValues(tool, status(success)).Inc()
	p.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// AddToolRequestsSkipped counts unprocessed tool requests.
func (p *PrometheusRecorder) AddToolRequestsSkipped(n int) {
	if n > 0 {
		p.toolSkipped.Add(float64(n))
	}
}

// IncDecision counts a human answer.
func (p *PrometheusRecorder) IncDecision(kind, decision string) {
	p.decisionsTotal.WithLabelValues(kind, decision).Inc()
}

// IncDiffApply counts a diff application.
func (p *PrometheusRecorder) IncDiffApply(success bool) {
	p.diffAppliesTotal.WithLabelValues(status(success)).Inc()
}

// IncTurn counts a finished turn.
func (p *PrometheusRecorder) IncTurn(outcome string) {
	p.turnsTotal.WithLabelValues(outcome).Inc()
}

// IncRollback counts a rollback protocol outcome.
func (p *PrometheusRecorder) IncRollback(outcome string) {
	p.rollbackTotal.WithLabelValues(outcome).Inc()
}

// IncStateTransition counts a turn state change.
func (p *PrometheusRecorder) IncStateTransition(from, to string) {
	p.transitionsTotal.WithLabelValues(from, to).Inc()
}
