package autopilot

import (
	"context"
	"fmt"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/network"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
)

// Sink delivers a command to the studio and returns its reply.
type Sink interface {
	Send(ctx context.Context, cmd network.Command) (network.Envelope, error)
}

// LocalSink runs commands in-process through a dispatcher.
type LocalSink struct {
	Dispatcher *network.Dispatcher
}

// Send dispatches cmd directly.
func (s LocalSink) Send(ctx context.Context, cmd network.Command) (network.Envelope, error) {
	return s.Dispatcher.Dispatch(ctx, cmd), nil
}

// Executor turns approved decisions into commands.
type Executor struct {
	sink   Sink
	logger *logger.Logger
}

// NewExecutor creates a new action executor.
func NewExecutor(sink Sink, log *logger.Logger) *Executor {
	return &Executor{sink: sink, logger: log}
}

// Execute sends the decision's command. An unapproved decision is a no-op
// that returns an empty envelope. A rejection by the studio is not an error
// here; it comes back in the envelope.
func (e *Executor) Execute(ctx context.Context, d *Decision) (network.Envelope, error) {
	if !d.Approved || d.Action == ActionIdle {
		return network.Envelope{}, nil
	}

	env, err := e.sink.Send(ctx, d.Command)
	if err != nil {
		return env, fmt.Errorf("send %s: %w", d.Command.Type, err)
	}
	if env.Error != nil {
		e.logger.Warn(fmt.Sprintf("studio rejected %s: %s", d.Action, env.Error.Message))
		return env, nil
	}
	e.logger.Event("ACTION", string(d.Action), d.Justification)
	return env, nil
}
