package bridge

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jonwraymond/uibridge/executor"
)

// inputRouter correlates input_request frames with their input_response
// answers. Pending requests are keyed by a generated request id; all
// pending requests for a connection are canceled when it disconnects.
type inputRouter struct {
	mu      sync.Mutex
	pending map[string]chan any
}

func newInputRouter() *inputRouter {
	return &inputRouter{pending: make(map[string]chan any)}
}

func (r *inputRouter) register() (string, chan any) {
	id := uuid.NewString()
	ch := make(chan any, 1)
	r.mu.Lock()
	r.pending[id] = ch
	r.mu.Unlock()
	return id, ch
}

func (r *inputRouter) drop(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// resolve delivers a client answer to the waiting requester. Answers for
// unknown ids (late, duplicate, or made up) are dropped.
func (r *inputRouter) resolve(id string, value any) bool {
	r.mu.Lock()
	ch, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	ch <- value
	return true
}

// connInputRequester lets an executing command prompt the connection's
// client for input mid-command.
type connInputRequester struct {
	conn   *Conn
	router *inputRouter
}

var _ executor.InputRequester = (*connInputRequester)(nil)

func (p *connInputRequester) RequestInput(ctx context.Context, prompt executor.InputPrompt) (any, error) {
	id, ch := p.router.register()

	req := InputRequestMessage{
		Event:     EventInputRequest,
		RequestID: id,
		Type:      prompt.Type,
		Prompt:    prompt.Prompt,
		Options:   prompt.Options,
	}
	if err := p.conn.Send(req); err != nil {
		p.router.drop(id)
		return nil, err
	}

	select {
	case value := <-ch:
		return value, nil
	case <-ctx.Done():
		p.router.drop(id)
		return nil, ctx.Err()
	case <-p.conn.done:
		p.router.drop(id)
		return nil, ErrInputCanceled
	}
}
