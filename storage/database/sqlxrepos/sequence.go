package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/shule/backend/core"
)

type sequencer struct {
	baseRepository
}

var _ core.Sequencer = (*sequencer)(nil) // interface compliance check

func NewSequencer(exec core.DBExecutor) *sequencer {
	return &sequencer{baseRepository{exec: exec}}
}

// Next bumps the (name, scope) counter in a single statement; the row lock it takes is held until
// the caller's transaction ends, so concurrent callers are served one after the other.
func (seq sequencer) Next(ctx context.Context, name string, scope int, exec ...core.DBExecutor) (int64, error) {
	var next int64
	err := seq.getExec(exec).QueryRowContext(ctx, `
		INSERT INTO number_sequence (name, scope, last_value) VALUES ($1, $2, 1)
		ON CONFLICT (name, scope) DO UPDATE SET last_value = number_sequence.last_value + 1
		RETURNING last_value`, name, scope).Scan(&next)
	if err != nil {
		return 0, errors.Wrapf(err, "bumping sequence %s/%d", name, scope)
	}
	return next, nil
}
