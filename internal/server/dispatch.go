package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mj1618/tab-bridge/internal/protocol"
	"github.com/mj1618/tab-bridge/internal/telemetry"
)

// Channel is the duplex message channel a Dispatcher serves.
// *protocol.Conn implements it.
type Channel interface {
	Receive() (*protocol.Request, error)
	Send(resp *protocol.Response) error
}

// Dispatcher routes inbound requests to registry handlers.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *telemetry.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithTelemetry traces each command and records dispatch metrics.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(d *Dispatcher) {
		if t == nil {
			return
		}
		d.tracer = t.Tracer
		d.metrics = t.Metrics
	}
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		logger:   slog.New(slog.DiscardHandler),
		tracer:   noop.NewTracerProvider().Tracer("tab-bridge"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// inbound is one result of Channel.Receive.
type inbound struct {
	req *protocol.Request
	err error
}

// Serve reads requests from ch until the peer closes it. Commands run
// concurrently, each answered by exactly one results message.
// Subscriptions push updates until Serve returns. Unknown names get no
// reply.
//
// Serve returns nil when the peer closes the channel cleanly or ctx is
// cancelled, and an error wrapping protocol.ErrChannelFailure as soon as
// reading or writing fails. It waits for in-flight commands before
// returning. A Receive still pending when Serve returns early is abandoned;
// closing the underlying transport releases it.
func (d *Dispatcher) Serve(ctx context.Context, ch Channel) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		failMu  sync.Mutex
		failure error
	)
	send := func(resp *protocol.Response) {
		if err := ch.Send(resp); err != nil {
			failMu.Lock()
			if failure == nil {
				failure = err
				d.logger.Error("send failed", "error", err)
			}
			failMu.Unlock()
			cancel()
		}
	}
	sendFailure := func() error {
		failMu.Lock()
		defer failMu.Unlock()
		return failure
	}

	received := make(chan inbound)
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		for {
			req, err := ch.Receive()
			select {
			case received <- inbound{req: req, err: err}:
			case <-stopped:
				return
			}
			if err != nil && !errors.Is(err, protocol.ErrMalformedMessage) {
				return
			}
		}
	}()

	for {
		var in inbound
		select {
		case <-ctx.Done():
			if err := sendFailure(); err != nil {
				return err
			}
			d.logger.Debug("serve cancelled")
			return nil
		case in = <-received:
		}

		if in.err != nil {
			if errors.Is(in.err, protocol.ErrMalformedMessage) {
				d.logger.Warn("dropping malformed message", "error", in.err)
				continue
			}
			if errors.Is(in.err, io.EOF) {
				d.logger.Debug("channel closed by peer")
				wg.Wait()
				return sendFailure()
			}
			return in.err
		}
		if err := sendFailure(); err != nil {
			return err
		}
		req := in.req

		if fn, ok := d.registry.Command(req.Command); ok {
			wg.Add(1)
			go func() {
				defer wg.Done()
				send(d.runCommand(ctx, req, fn))
			}()
			continue
		}

		if fn, ok := d.registry.Subscription(req.Command); ok {
			d.subscribe(ctx, req, fn, send)
			continue
		}

		d.logger.Debug("ignoring unknown command", "command", req.Command)
		d.metrics.RecordUnknownCommand(ctx)
	}
}

// Invoke runs one registered command outside a channel and returns its
// results. Handler errors and panics come back as errors.
func (d *Dispatcher) Invoke(ctx context.Context, req *protocol.Request) (any, error) {
	fn, ok := d.registry.Command(req.Command)
	if !ok {
		if _, isSub := d.registry.Subscription(req.Command); isSub {
			return nil, fmt.Errorf("%q is a subscription and cannot be invoked", req.Command)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)
	}
	return d.call(ctx, req, fn)
}

func (d *Dispatcher) runCommand(ctx context.Context, req *protocol.Request, fn CommandFunc) *protocol.Response {
	result, err := d.call(ctx, req, fn)
	if err != nil {
		result = NewErrorResult(err)
	}
	return &protocol.Response{ID: req.ID, Type: protocol.TypeResults, Results: result}
}

// call runs fn inside a span, recovering panics.
func (d *Dispatcher) call(ctx context.Context, req *protocol.Request, fn CommandFunc) (result any, err error) {
	ctx, span := d.tracer.Start(ctx, "command "+req.Command,
		trace.WithAttributes(attribute.String("command", req.Command)))
	defer span.End()

	outcome := telemetry.OutcomeOK
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
			result = nil
			outcome = telemetry.OutcomePanic
		}
		if err != nil {
			if outcome == telemetry.OutcomeOK {
				outcome = telemetry.OutcomeError
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			d.logger.Warn("command failed", "command", req.Command, "error", err)
		}
		d.metrics.RecordCommand(ctx, req.Command, outcome)
	}()

	return fn(ctx, req)
}

// subscribe registers a subscriber. A registration failure is answered
// with an error payload like a failed command.
func (d *Dispatcher) subscribe(ctx context.Context, req *protocol.Request, fn SubscriptionFunc, send func(*protocol.Response)) {
	push := func(results any) {
		if ctx.Err() != nil {
			return
		}
		d.metrics.RecordUpdate(ctx, req.Command)
		send(&protocol.Response{ID: req.ID, Type: protocol.TypeUpdate, Results: results})
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &panicError{value: r}
			}
		}()
		return fn(ctx, req, push)
	}()
	if err != nil {
		d.logger.Warn("subscription failed", "command", req.Command, "error", err)
		send(&protocol.Response{ID: req.ID, Type: protocol.TypeResults, Results: NewErrorResult(err)})
		return
	}
	d.logger.Debug("subscribed", "command", req.Command)
}
