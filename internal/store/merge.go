package store

import (
	"fmt"
	"time"

	"dario.cat/mergo"

	"github.com/acfsync/acfsync/internal/domain"
)

// mergeFields lays the incoming fields over the stored ones. Incoming values
// win; stored fields the incoming descriptor does not mention are kept.
func mergeFields(stored, incoming domain.Descriptor) (domain.Descriptor, error) {
	merged := domain.Descriptor{}
	if stored != nil {
		merged = stored.WithoutID()
	}
	if err := mergo.Merge(&merged, incoming.WithoutID(), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge fields: %w", err)
	}
	return merged, nil
}

// newRecord builds the record for a descriptor that has no stored counterpart
func newRecord(id int64, d domain.Descriptor, category domain.Category, now time.Time) *domain.Record {
	fields := d.WithoutID()
	return &domain.Record{
		ID:        id,
		Key:       d.Key(),
		Category:  category,
		Title:     fields.Title(),
		Fields:    fields,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// applyUpdate merges d into existing and refreshes the derived columns
func applyUpdate(existing *domain.Record, d domain.Descriptor, now time.Time) (*domain.Record, error) {
	fields, err := mergeFields(existing.Fields, d)
	if err != nil {
		return nil, err
	}
	updated := *existing
	updated.Key = d.Key()
	updated.Fields = fields
	updated.Title = fields.Title()
	updated.UpdatedAt = now
	return &updated, nil
}
