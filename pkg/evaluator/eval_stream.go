package evaluator

import (
	"context"
	"errors"
	"io"

	"github.com/sandrolain/sonata/pkg/types"
)

// StreamResult holds the output of a single streaming evaluation step.
type StreamResult struct {
	// Value is the evaluated result for one input document, or nil when Err is set.
	Value types.Value
	// Err is non-nil when evaluation of a single document failed.
	// After a fatal I/O or JSON-decode error the channel is closed; per-document
	// evaluation errors are sent individually and the stream continues.
	Err error
}

// EvalStream reads a sequence of JSON documents from r (NDJSON or
// concatenated JSON) and evaluates expr against each one, sending results
// on the returned channel in input order.
//
// The channel is closed when all input has been consumed or the context is
// cancelled. It is the caller's responsibility to drain the channel or
// cancel the context to avoid goroutine leaks.
func (e *Evaluator) EvalStream(ctx context.Context, expr *types.Expression, r io.Reader) (<-chan StreamResult, error) {
	if expr == nil || expr.AST() == nil {
		return nil, ErrInvalidExpression
	}

	ch := make(chan StreamResult, 16)
	go func() {
		defer close(ch)
		dec := types.NewDecoder(r)
		send := func(res StreamResult) bool {
			select {
			case ch <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for {
			if err := ctx.Err(); err != nil {
				send(StreamResult{Err: err})
				return
			}
			doc, err := dec.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					send(StreamResult{Err: err})
				}
				return
			}
			result, err := e.Eval(ctx, expr, doc)
			if !send(StreamResult{Value: result, Err: err}) {
				return
			}
		}
	}()
	return ch, nil
}
