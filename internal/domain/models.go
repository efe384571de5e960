// Package domain defines the core data structures used by acfsync.
// It contains import descriptors, stored records and audit operations.
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Field names with special meaning inside a descriptor
const (
	FieldKey   = "key"
	FieldID    = "ID"
	FieldTitle = "title"
)

// Descriptor is one importable record as decoded from JSON
type Descriptor map[string]any

// Key returns the descriptor's stable external key, or "" if absent
func (d Descriptor) Key() string {
	key, _ := d[FieldKey].(string)
	return key
}

// Title returns the descriptor's title, or "" if absent
func (d Descriptor) Title() string {
	title, _ := d[FieldTitle].(string)
	return title
}

// ID returns the store identity carried by the descriptor, if any
func (d Descriptor) ID() (int64, bool) {
	switch v := d[FieldID].(type) {
	case int64:
		return v, v > 0
	case int:
		return int64(v), v > 0
	case float64:
		if v != math.Trunc(v) || v >= math.MaxInt64 {
			return 0, false
		}
		return int64(v), v > 0
	case json.Number:
		id, err := v.Int64()
		return id, err == nil && id > 0
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil && id > 0
	}
	return 0, false
}

// Clone returns a shallow copy of the descriptor
func (d Descriptor) Clone() Descriptor {
	c := make(Descriptor, len(d)+1)
	for k, v := range d {
		c[k] = v
	}
	return c
}

// WithID returns a copy of the descriptor tagged with the given identity
func (d Descriptor) WithID(id int64) Descriptor {
	c := d.Clone()
	c[FieldID] = id
	return c
}

// WithoutID returns a copy of the descriptor with any identity removed
func (d Descriptor) WithoutID() Descriptor {
	c := d.Clone()
	delete(c, FieldID)
	return c
}

// Batch is an ordered sequence of descriptors
type Batch []Descriptor

// Action describes what reconciliation did (or would do) with a descriptor
type Action string

// Reconciliation actions
const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Outcome is the per-descriptor result of reconciliation
type Outcome struct {
	Key      string   `json:"key"`
	Category Category `json:"category"`
	ID       int64    `json:"id"`
	Action   Action   `json:"action"`
}

// Result is the ordered list of persisted identities for one batch
type Result struct {
	IDs      []int64   `json:"ids"`
	Total    int       `json:"total"`
	Outcomes []Outcome `json:"outcomes"`
}

// Record is the stored form of a descriptor
type Record struct {
	ID        int64      `json:"id"`
	Key       string     `json:"key"`
	Category  Category   `json:"category"`
	Title     string     `json:"title,omitempty"`
	Fields    Descriptor `json:"fields"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Descriptor returns the record's fields as a descriptor tagged with its ID
func (r *Record) Descriptor() Descriptor {
	var d Descriptor
	if r.Fields == nil {
		d = Descriptor{FieldKey: r.Key}
	} else {
		d = r.Fields.Clone()
	}
	d[FieldID] = r.ID
	return d
}

// String implements fmt.Stringer
func (r *Record) String() string {
	return fmt.Sprintf("%s#%d (%s)", r.Category, r.ID, r.Key)
}

// Operation types recorded in the audit log
const (
	OpImport = "import"
	OpExport = "export"
)

// Operation represents an audit log entry for one command run
type Operation struct {
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Total     int       `json:"total"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
