// Package entity loads the list of entity names to enrich from a CSV or XLSX
// table with a header row.
package entity

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultColumn is the header of the entity column in the disease dataset.
const DefaultColumn = "diseases"

// Options selects the column and bounds the result.
type Options struct {
	Column string // header name, matched case-insensitively; default DefaultColumn
	Limit  int    // 0 = no limit
	Sheet  string // XLSX sheet name; default first sheet
}

// Load reads entity names from path. The format is chosen by extension:
// .xlsx reads a workbook, anything else is parsed as CSV. Values are
// trimmed, blanks dropped and duplicates removed keeping the first one.
func Load(ctx context.Context, path string, opts Options) ([]string, error) {
	if opts.Column == "" {
		opts.Column = DefaultColumn
	}

	var (
		rows <-chan []string
		errs <-chan error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, errs = streamXLSX(ctx, path, opts.Sheet)
	default:
		rows, errs = streamCSV(ctx, path)
	}

	names, err := collect(rows, opts)
	drain(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "entity: load %s", path)
	}
	if err := <-errs; err != nil {
		return nil, eris.Wrapf(err, "entity: load %s", path)
	}
	return names, nil
}

// collect reads the header, locates the column and gathers unique values.
func collect(rows <-chan []string, opts Options) ([]string, error) {
	header, ok := <-rows
	if !ok {
		return nil, nil
	}
	col := columnIndex(header, opts.Column)
	if col < 0 {
		return nil, eris.Errorf("entity: column %q not found in header %v", opts.Column, header)
	}

	seen := make(map[string]struct{})
	var names []string
	for row := range rows {
		if col >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[col])
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
		if opts.Limit > 0 && len(names) >= opts.Limit {
			break
		}
	}
	return names, nil
}

func columnIndex(header []string, column string) int {
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if strings.EqualFold(strings.TrimSpace(h), column) {
			return i
		}
	}
	return -1
}

// drain unblocks a producer that is still sending after collect stops early.
func drain(rows <-chan []string) {
	for range rows { //nolint:revive
	}
}
