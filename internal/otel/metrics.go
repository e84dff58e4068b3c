package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	lifecycleCounter    metric.Int64Counter
	messagesCounter     metric.Int64Counter
	completionDuration  metric.Float64Histogram
	taskOpsCounter      metric.Int64Counter
	collabCounter       metric.Int64Counter
	sseConnectionsGauge metric.Int64ObservableGauge
	sseEventsCounter    metric.Int64Counter
	sseConnections      int64
	sseConnectionsMu    sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		lifecycleCounter, err = m.Int64Counter("devcrew_agent_lifecycle_total", metric.WithDescription("Agent starts, stops and restarts"))
		if err != nil {
			return
		}
		messagesCounter, err = m.Int64Counter("devcrew_messages_processed_total", metric.WithDescription("Messages processed by agents, by outcome"))
		if err != nil {
			return
		}
		completionDuration, err = m.Float64Histogram("devcrew_completion_duration_seconds", metric.WithDescription("Completion call latency in seconds"))
		if err != nil {
			return
		}
		taskOpsCounter, err = m.Int64Counter("devcrew_task_operations_total", metric.WithDescription("Total task operations (create, promote, complete, fail)"))
		if err != nil {
			return
		}
		collabCounter, err = m.Int64Counter("devcrew_collaboration_requests_total", metric.WithDescription("Collaboration requests sent, by type"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("devcrew_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("devcrew_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
	})
	return err
}

// RecordLifecycle records an agent start, stop or restart.
func RecordLifecycle(ctx context.Context, agent, event string) {
	if lifecycleCounter == nil {
		return
	}
	lifecycleCounter.Add(ctx, 1, metric.WithAttributes(AttrAgent.String(agent), AttrEvent.String(event)))
}

// RecordMessage records one processed message; outcome is "ok" or "fallback".
func RecordMessage(ctx context.Context, agent, outcome string) {
	if messagesCounter == nil {
		return
	}
	messagesCounter.Add(ctx, 1, metric.WithAttributes(AttrAgent.String(agent), AttrOutcome.String(outcome)))
}

// RecordCompletion records a completion call's latency.
func RecordCompletion(ctx context.Context, agent, backend string, duration time.Duration, err error) {
	if completionDuration == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	completionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		AttrAgent.String(agent),
		AttrBackend.String(backend),
		AttrOutcome.String(outcome),
	))
}

// RecordTaskOp records a task operation (create, promote, complete, fail).
func RecordTaskOp(ctx context.Context, op, agent, status string) {
	if taskOpsCounter == nil {
		return
	}
	taskOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		AttrAgent.String(agent),
		AttrStatus.String(status),
	))
}

// RecordCollaboration records a collaboration request by type.
func RecordCollaboration(ctx context.Context, agent, requestType string) {
	if collabCounter == nil {
		return
	}
	collabCounter.Add(ctx, 1, metric.WithAttributes(AttrAgent.String(agent), AttrType.String(requestType)))
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// GaugeFuncs supply observable values: running agent count and task counts by status.
type GaugeFuncs struct {
	RunningAgents func() int64
	TasksByStatus func() map[string]int64
}

// InitMetricsWithGauges creates instruments and registers callbacks for the
// non-nil gauge funcs. Call after InitMeterProvider.
func InitMetricsWithGauges(ctx context.Context, g GaugeFuncs) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	m := Meter()
	if g.RunningAgents != nil {
		running, err := m.Int64ObservableGauge("devcrew_running_agents", metric.WithDescription("Agents currently running"))
		if err != nil {
			return err
		}
		if _, err := m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(running, g.RunningAgents())
			return nil
		}, running); err != nil {
			return err
		}
	}
	if g.TasksByStatus != nil {
		tasks, err := m.Int64ObservableGauge("devcrew_tasks", metric.WithDescription("Number of tasks by status"))
		if err != nil {
			return err
		}
		if _, err := m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			for status, n := range g.TasksByStatus() {
				o.ObserveInt64(tasks, n, metric.WithAttributes(AttrStatus.String(status)))
			}
			return nil
		}, tasks); err != nil {
			return err
		}
	}
	return nil
}
