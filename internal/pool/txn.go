package pool

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

type stepFunc func(ctx context.Context) error

// txn stages collaborator calls and the compensations that reverse them.
type txn struct {
	undo []stepFunc
}

// do runs step and, when it succeeds, registers undo for rollback.
func (t *txn) do(ctx context.Context, step, undo stepFunc) error {
	if err := step(ctx); err != nil {
		return err
	}
	if undo != nil {
		t.undo = append(t.undo, undo)
	}
	return nil
}

// abort runs compensations in reverse order. cause is returned as-is when every
// compensation succeeds.
func (t *txn) abort(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	err := cause
	for i := len(t.undo) - 1; i >= 0; i-- {
		if uerr := t.undo[i](ctx); uerr != nil {
			err = multierr.Append(err, fmt.Errorf("rollback step %d: %w", i, uerr))
		}
	}
	t.undo = nil
	return err
}
