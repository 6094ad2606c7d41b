package livekit

import (
	"context"
)

// pendingCompletion is implemented by every one-shot completion stored in the
// callback context table.
type pendingCompletion interface {
	owner() *Client
	// abandon closes the completion without a result. Only valid after the
	// entry has been taken from the context table.
	abandon()
}

type outcome[T any] struct {
	value T
	err   error
}

// completion is a one-shot rendezvous between a native callback and the
// goroutine that started the operation. The context table holds the only
// reference the native side can reach; whoever takes the entry out of the
// table is the single party allowed to resolve or abandon it.
type completion[T any] struct {
	client *Client
	op     string
	result chan outcome[T]
}

// newCompletion registers a completion and returns it with the context id to
// hand to the native entry point.
func newCompletion[T any](c *Client, op string) (*completion[T], uintptr) {
	p := &completion[T]{
		client: c,
		op:     op,
		result: make(chan outcome[T], 1),
	}
	return p, callbackContexts.put(p)
}

func (p *completion[T]) owner() *Client { return p.client }

func (p *completion[T]) resolve(v T, err error) {
	p.result <- outcome[T]{value: v, err: err}
}

func (p *completion[T]) abandon() {
	close(p.result)
}

// wait blocks until the native callback resolves the completion or ctx is
// done. Giving up on ctx leaves the context entry registered: it is only
// reclaimed when the native callback eventually fires.
func (p *completion[T]) wait(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case o, ok := <-p.result:
		if !ok {
			return zero, contractError(p.op)
		}
		return o.value, o.err
	}
}

// takeCompletion removes the completion registered under ctx. A missing entry
// means the callback already fired or the client abandoned it; an entry of
// another result type means the native layer mixed up its contexts. Both are
// contract violations. The caller gets ok only for a completion it may
// resolve.
func takeCompletion[T any](ctx uintptr) (*completion[T], bool) {
	v, ok := callbackContexts.lookup(ctx)
	if !ok {
		reportContractViolation(Logger(), "one-shot callback fired for unknown context", ctx)
		return nil, false
	}
	pending, ok := v.(pendingCompletion)
	if !ok {
		reportContractViolation(Logger(), "one-shot callback fired with a non-completion context", ctx)
		return nil, false
	}
	if _, ok := callbackContexts.take(ctx); !ok {
		reportContractViolation(Logger(), "one-shot callback fired twice concurrently", ctx)
		return nil, false
	}
	p, ok := pending.(*completion[T])
	if !ok {
		reportContractViolation(pending.owner().log(), "one-shot callback fired with a mismatched completion", ctx)
		pending.abandon()
		return nil, false
	}
	return p, true
}

// onOperationDone is the completion trampoline for connect and publish. It
// runs at most once per context on a native thread.
func onOperationDone(ctx uintptr, err Handle) {
	p, ok := takeCompletion[struct{}](ctx)
	if !ok {
		return
	}
	if err == 0 {
		p.resolve(struct{}{}, nil)
		return
	}
	p.resolve(struct{}{}, &OperationError{
		Op:      p.op,
		Message: p.client.native.StringValue(err),
	})
}
