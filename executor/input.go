package executor

import "context"

// InputPrompt describes a request for interactive input from the client
// that issued the running command.
type InputPrompt struct {
	// Type is the input kind (text, confirm, choice, ...).
	Type string

	// Prompt is the text shown to the user.
	Prompt string

	// Options lists the choices for choice-type prompts.
	Options []string
}

// InputRequester lets a running command ask the originating client for
// input. The bridge injects a connection-scoped implementation into the
// execution context.
//
// Contract:
// - Context: RequestInput blocks until the client answers, the context is
//   canceled, or the connection goes away.
type InputRequester interface {
	RequestInput(ctx context.Context, prompt InputPrompt) (any, error)
}

type inputKey struct{}

// WithInputRequester returns a context carrying the input requester.
func WithInputRequester(ctx context.Context, r InputRequester) context.Context {
	return context.WithValue(ctx, inputKey{}, r)
}

// InputRequesterFromContext retrieves the input requester, or nil when the
// command was not started from an interactive connection.
func InputRequesterFromContext(ctx context.Context) InputRequester {
	r, _ := ctx.Value(inputKey{}).(InputRequester)
	return r
}
