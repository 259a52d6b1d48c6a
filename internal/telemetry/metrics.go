package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tab-bridge"

// Command outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomePanic = "panic"
)

// Identify outcomes.
const (
	IdentifyCreated   = "created"
	IdentifyRefreshed = "refreshed"
	IdentifyCleared   = "cleared"
	IdentifyNoop      = "noop"
	IdentifyRaceLost  = "race_lost"
	IdentifyFailed    = "failed"
)

// Metrics holds the bridge metric instruments. All methods are safe on a
// nil *Metrics.
type Metrics struct {
	Commands            metric.Int64Counter
	UnknownCommands     metric.Int64Counter
	SubscriptionUpdates metric.Int64Counter
	Identify            metric.Int64Counter
}

// NewMetrics creates the instruments on the global MeterProvider. They are
// no-ops when none is registered.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(meterName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.Commands, err = meter.Int64Counter("bridge.commands",
		metric.WithDescription("Commands handled, partitioned by command and outcome"))
	if err != nil {
		return nil, err
	}

	m.UnknownCommands, err = meter.Int64Counter("bridge.commands.unknown",
		metric.WithDescription("Inbound messages naming no registered command or subscription"))
	if err != nil {
		return nil, err
	}

	m.SubscriptionUpdates, err = meter.Int64Counter("bridge.subscription.updates",
		metric.WithDescription("Updates pushed to subscribers, partitioned by subscription"))
	if err != nil {
		return nil, err
	}

	m.Identify, err = meter.Int64Counter("bridge.identify",
		metric.WithDescription("Window identification requests, partitioned by outcome"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCommand records one handled command.
func (m *Metrics) RecordCommand(ctx context.Context, command, outcome string) {
	if m == nil {
		return
	}
	m.Commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	))
}

// RecordUnknownCommand records an ignored inbound message.
func (m *Metrics) RecordUnknownCommand(ctx context.Context) {
	if m == nil {
		return
	}
	m.UnknownCommands.Add(ctx, 1)
}

// RecordUpdate records one subscription push.
func (m *Metrics) RecordUpdate(ctx context.Context, command string) {
	if m == nil {
		return
	}
	m.SubscriptionUpdates.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
	))
}

// RecordIdentify records the outcome of one identification request.
func (m *Metrics) RecordIdentify(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Identify.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}
