package executor

import (
	"context"

	"github.com/jonwraymond/uibridge/auth"
)

// Command is one unit of work handed to the backend engine.
type Command struct {
	// Key is the command key (zKey) or plain command name.
	Key string

	// Horizontal is the optional horizontal qualifier accompanying the key.
	Horizontal string

	// Action is the declared action (read, create, update, delete, ...).
	Action string

	// Data carries the command payload.
	Data map[string]any
}

// DisplayEvent is a side-channel message produced while a command runs.
// Events are buffered and delivered to the requester after the primary
// response, in production order.
type DisplayEvent struct {
	Data map[string]any
}

// Result is the outcome of a successful execution.
type Result struct {
	// Value is the primary result payload.
	Value any

	// Display holds buffered display events, in production order.
	Display []DisplayEvent
}

// Executor is the external command-execution collaborator. Together with
// auth.Directory it is the only call into out-of-scope subsystems.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Execute must honor cancellation/deadlines; the identity is
//   also available via auth.IdentityFromContext.
// - Errors: a failed command returns (nil, err); the bridge converts it to
//   an error response for the requester.
type Executor interface {
	Execute(ctx context.Context, cmd Command, id *auth.Identity) (*Result, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, cmd Command, id *auth.Identity) (*Result, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, cmd Command, id *auth.Identity) (*Result, error) {
	return f(ctx, cmd, id)
}

// Ensure Func implements Executor
var _ Executor = (Func)(nil)
