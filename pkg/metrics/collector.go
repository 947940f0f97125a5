package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avdeyev/dexflow-bot/internal/chain"
	"github.com/avdeyev/dexflow-bot/internal/flow"
	"github.com/avdeyev/dexflow-bot/internal/state"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of state machine transitions",
		},
		[]string{"from", "to"},
	)
	flowOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_outcomes_total",
			Help: "Flow terminations labeled by flow family and outcome",
		},
		[]string{"flow", "outcome"},
	)
	executorSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_submissions_total",
			Help: "Settled transaction submissions labeled by outcome",
		},
		[]string{"status"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of sessions with stored state",
		},
	)
	sessionsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_by_state",
			Help: "Number of sessions per state",
		},
		[]string{"state"},
	)
)

var trackedStates = []state.State{
	state.StateIdle,
	state.StateBuyTokenSelect,
	state.StateBuyAmount,
	state.StateBuyConfirm,
	state.StateSellTokenSelect,
	state.StateSellAmount,
	state.StateSellConfirm,
	state.StateWithdrawAddress,
	state.StateWithdrawAmount,
	state.StateWithdrawConfirm,
	state.StateSettingsSlippage,
}

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
	flow.RegisterOutcomeRecorder(RecordFlowOutcome)
	chain.RegisterSubmissionRecorder(RecordSubmission)
}

// RecordSubmission counts a settled transaction submission.
func RecordSubmission(status string) {
	if status == "" {
		status = "unknown"
	}
	executorSubmissionsTotal.WithLabelValues(status).Inc()
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks FSM transitions.
func RecordStateTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordFlowOutcome tracks how flows end.
func RecordFlowOutcome(flowName, outcome string) {
	if flowName == "" {
		flowName = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}

	flowOutcomesTotal.WithLabelValues(flowName, outcome).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// StateCollector periodically gathers FSM state counts and emits gauge metrics.
type StateCollector struct {
	fsm state.StateMachine
}

// NewStateCollector builds a metrics collector bound to the provided FSM.
func NewStateCollector(fsm state.StateMachine) *StateCollector {
	return &StateCollector{fsm: fsm}
}

// Run polls the FSM every 10 seconds, updating session gauges until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.fsm == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		_ = c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
		}
	}
}

func (c *StateCollector) collect(ctx context.Context) error {
	states, err := c.fsm.GetAllStates(ctx)
	if err != nil {
		return err
	}

	activeSessions.Set(float64(len(states)))

	stateCounts := make(map[string]int, len(states))
	for _, st := range states {
		label := "unknown"
		if st != nil && st.CurrentState != "" {
			label = string(st.CurrentState)
		}
		stateCounts[label]++
	}

	sessionsByState.Reset()

	for _, tracked := range trackedStates {
		label := string(tracked)
		sessionsByState.WithLabelValues(label).Set(float64(stateCounts[label]))
		delete(stateCounts, label)
	}

	for label, count := range stateCounts {
		sessionsByState.WithLabelValues(label).Set(float64(count))
	}

	return nil
}
