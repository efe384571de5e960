package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/acfsync/acfsync/internal/logger"
	"github.com/acfsync/acfsync/internal/util"
)

// MaxOutputSize is the maximum allowed size for output to prevent memory exhaustion
const MaxOutputSize = 10 * 1024 * 1024 // 10MB

// Output formats accepted by --json and output_format
const (
	formatTable = "table"
	formatJSON  = "json"
)

// writeString writes a string to the writer with error checking and size limits
func writeString(w io.Writer, s string) error {
	if len(s) > MaxOutputSize {
		return fmt.Errorf("output size %d exceeds maximum allowed size %d",
			len(s), MaxOutputSize)
	}

	n, err := fmt.Fprint(w, s)
	if err != nil {
		return fmt.Errorf("failed to write output (wrote %d bytes): %w", n, err)
	}

	// Ensure the output is flushed if it's buffered
	if f, ok := w.(interface{ Flush() error }); ok {
		if flushErr := f.Flush(); flushErr != nil {
			return fmt.Errorf("failed to flush output: %w", flushErr)
		}
	}

	return nil
}

// writeOutput is a helper function to write formatted output with error checking and size limits
func writeOutput(w io.Writer, format string, args ...interface{}) error {
	output := fmt.Sprintf(format, args...)
	return writeString(w, output)
}

// writeJSON encodes v as indented JSON
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

// checkDeferredErr records the error of a deferred call. It is meant for
// named return values:
//
//	defer checkDeferredErr(&err, log, "close record store", s.Close)
func checkDeferredErr(err *error, log *logger.Logger, op string, fn func() error) {
	cerr := fn()
	if cerr == nil {
		return
	}

	log.Warn().Err(cerr).Str("op", op).Msg("deferred call failed")

	// Only override the error if it's not already set
	if *err == nil {
		*err = util.WrapError(cerr, op)
	}
}

// useJSON decides between table and JSON output. An explicit --json wins,
// then the configured format; "auto" picks JSON unless w is a terminal.
func useJSON(w io.Writer, jsonFlag bool, configured string) bool {
	if jsonFlag {
		return true
	}
	switch configured {
	case formatJSON:
		return true
	case formatTable:
		return false
	default:
		return !isTerminal(w)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
