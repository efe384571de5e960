// Package importer turns an import document into stored records. Each
// descriptor is matched against the store by its key and either updates the
// existing record or creates a new one.
package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/acfsync/acfsync/internal/domain"
	"github.com/acfsync/acfsync/internal/logger"
	"github.com/acfsync/acfsync/internal/store"
	"github.com/acfsync/acfsync/internal/util"
)

// Options tune a reconciliation run
type Options struct {
	// DryRun classifies and looks up every descriptor without persisting it
	DryRun bool
}

// Reconciler imports batches into a record store
type Reconciler struct {
	store store.RecordStore
	log   *logger.Logger
	opts  Options
}

// NewReconciler creates a reconciler backed by s
func NewReconciler(s store.RecordStore, log *logger.Logger, opts Options) *Reconciler {
	return &Reconciler{
		store: s,
		log:   log.Component("importer"),
		opts:  opts,
	}
}

// Reconcile processes the batch in order and returns the persisted IDs in
// input order. The first failure stops the run; items persisted before it
// stay persisted.
func (r *Reconciler) Reconcile(ctx context.Context, batch domain.Batch) (*domain.Result, error) {
	if len(batch) == 0 {
		return nil, &util.ReconciliationError{Index: -1, Err: errors.New("nothing to import: batch is empty")}
	}
	for i, d := range batch {
		if d.Key() == "" {
			return nil, &util.ReconciliationError{Index: i, Err: fmt.Errorf(`import item %d has no "key" field`, i)}
		}
	}

	result := &domain.Result{
		IDs:      make([]int64, 0, len(batch)),
		Outcomes: make([]domain.Outcome, 0, len(batch)),
	}

	for i, d := range batch {
		outcome, err := r.reconcileOne(ctx, d)
		if err != nil {
			r.log.Error().
				Err(err).
				Int("index", i).
				Str("key", d.Key()).
				Int("persisted", len(result.IDs)).
				Msg("import aborted")
			return nil, &util.ReconciliationError{Index: i, Key: d.Key(), Err: err}
		}

		r.log.Debug().
			Str("key", outcome.Key).
			Str("category", string(outcome.Category)).
			Int64("id", outcome.ID).
			Str("action", string(outcome.Action)).
			Bool("dry_run", r.opts.DryRun).
			Msg("descriptor reconciled")

		result.IDs = append(result.IDs, outcome.ID)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	result.Total = len(result.IDs)
	return result, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, d domain.Descriptor) (domain.Outcome, error) {
	key := d.Key()
	outcome := domain.Outcome{Key: key, Action: domain.ActionCreated}

	category, err := r.store.ClassifyByKey(ctx, key)
	if err != nil {
		return outcome, err
	}
	outcome.Category = category

	existing, err := r.store.FindByKeyAndCategory(ctx, key, category)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return outcome, err
	}

	var item domain.Descriptor
	if existing != nil {
		item = d.WithID(existing.ID)
		outcome.ID = existing.ID
		outcome.Action = domain.ActionUpdated
	} else {
		item = d.WithoutID()
	}

	if r.opts.DryRun {
		return outcome, nil
	}

	persisted, err := r.store.Persist(ctx, item, category)
	if err != nil {
		return outcome, err
	}
	id, ok := persisted.ID()
	if !ok {
		return outcome, fmt.Errorf("store returned no ID for %s", key)
	}
	outcome.ID = id
	return outcome, nil
}
