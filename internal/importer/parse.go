package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/acfsync/acfsync/internal/domain"
	"github.com/acfsync/acfsync/internal/util"
)

// MsgEmptyImport is reported for any input that yields no importable items
const MsgEmptyImport = "Import file empty."

// ReadBatchFile reads and parses the import file at path
func ReadBatchFile(path string) (domain.Batch, error) {
	if path == "" {
		return nil, util.NewInputError(MsgEmptyImport)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &util.InputError{Msg: "import file not found: " + path}
		}
		return nil, &util.InputError{Msg: "failed to read import file", Err: err}
	}

	return ParseBatch(data)
}

// ParseBatch decodes an import document. The document is either one
// descriptor object or an array of them.
func ParseBatch(data []byte) (domain.Batch, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, util.NewInputError(MsgEmptyImport)
	}
	// trailing garbage after the document makes it invalid JSON
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, util.NewInputError(MsgEmptyImport)
	}

	switch v := doc.(type) {
	case map[string]any:
		if len(v) == 0 {
			return nil, util.NewInputError(MsgEmptyImport)
		}
		d := domain.Descriptor(v)
		if d.Key() == "" {
			return nil, util.NewInputError(`import object has no "key" field`)
		}
		return domain.Batch{d}, nil

	case []any:
		if len(v) == 0 {
			return nil, util.NewInputError(MsgEmptyImport)
		}
		batch := make(domain.Batch, 0, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]any)
			if !ok || domain.Descriptor(obj).Key() == "" {
				return nil, util.NewInputError(`import item %d has no "key" field`, i)
			}
			batch = append(batch, domain.Descriptor(obj))
		}
		return batch, nil

	default:
		return nil, util.NewInputError(MsgEmptyImport)
	}
}
