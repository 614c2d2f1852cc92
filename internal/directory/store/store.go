// Package store holds the resident directory backends.
//
// Every backend keeps two views of the same records: an append log in
// insertion order, and a latest-wins index keyed by name. Re-adding a name
// appends a second row to the log and replaces the index entry, so the two
// views intentionally diverge. Counting uses the log; status lookups use the
// index.
//
// Writes go through a Tx runner so the log append and the index write land
// as one unit and only one add is applied at a time.
package store

import (
	"context"
	"time"

	"residents/internal/directory/models"
	dErrors "residents/pkg/domain-errors"
	"residents/pkg/platform/sentinel"
)

// ErrNotFound is returned by FindLatest when no add ever used the name.
var ErrNotFound = sentinel.ErrNotFound

// Writer appends a record to both views.
type Writer interface {
	Append(ctx context.Context, person *models.Person) error
}

// defaultTxTimeout bounds a single add transaction.
const defaultTxTimeout = 5 * time.Second

// stagedWriter buffers appends until the transaction callback succeeds.
type stagedWriter struct {
	pending []*models.Person
}

func (w *stagedWriter) Append(_ context.Context, person *models.Person) error {
	w.pending = append(w.pending, person)
	return nil
}

// beginTx applies the shared context checks and default timeout.
func beginTx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}
