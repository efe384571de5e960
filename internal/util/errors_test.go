package util

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"input", NewInputError("Import file empty."), ExitInvalidInput},
		{"wrapped input", fmt.Errorf("import: %w", NewInputError("bad")), ExitInvalidInput},
		{"config", &ConfigurationError{Msg: "unknown driver"}, ExitConfig},
		{"reconciliation", &ReconciliationError{Err: errors.New("boom")}, ExitError},
		{"locked", fmt.Errorf("open: %w", ErrLocked), ExitStoreLocked},
		{"corrupted", fmt.Errorf("verify: %w", ErrCorrupted), ExitIntegrityErr},
		{"plain", errors.New("plain"), ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestReconciliationError_MessageUnchanged(t *testing.T) {
	cause := errors.New("database is read-only")
	err := &ReconciliationError{Index: 2, Key: "group_3", Err: cause}

	assert.Equal(t, "database is read-only", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestInputError_Message(t *testing.T) {
	assert.Equal(t, "Import file empty.", (&InputError{Msg: "Import file empty."}).Error())
	assert.Equal(t, "read file: no such file", (&InputError{Msg: "read file", Err: errors.New("no such file")}).Error())
	assert.Equal(t, "no such file", (&InputError{Err: errors.New("no such file")}).Error())
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer

	code := WriteError(&buf, NewInputError("Import file empty."), "")
	assert.Equal(t, ExitInvalidInput, code)
	assert.Equal(t, "Error: Import file empty.\n", buf.String())

	buf.Reset()
	code = WriteError(&buf, fmt.Errorf("verify: %w", ErrCorrupted), "doctor")
	assert.Equal(t, ExitIntegrityErr, code)
	assert.Contains(t, buf.String(), "Error: doctor - verify: record store data is corrupted")
	assert.Contains(t, buf.String(), "acfsync doctor")

	buf.Reset()
	assert.Equal(t, ExitOK, WriteError(&buf, nil, ""))
	assert.Empty(t, buf.String())
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "ctx"))
	base := errors.New("base")
	wrapped := WrapError(base, "ctx")
	assert.EqualError(t, wrapped, "ctx: base")
	assert.ErrorIs(t, wrapped, base)
}
