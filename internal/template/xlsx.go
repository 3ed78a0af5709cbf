// Package template wraps xlsx workbook access for invoice templates. The
// templates themselves are read-only source material; callers clone them and
// mutate the clone.
package template

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// ErrTemplateNotFound marks a missing template file. Workflows must check it
// before making any remote call.
var ErrTemplateNotFound = errors.New("template not found")

// Workbook is an open xlsx file.
type Workbook struct {
	f *excelize.File
}

// Open opens an existing workbook.
func Open(path string) (*Workbook, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat workbook: %w", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	return &Workbook{f: f}, nil
}

// Clone copies the template at src to dst byte for byte, overwriting dst.
func Clone(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, src)
		}
		return fmt.Errorf("failed to open template: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create working copy: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy template: %w", err)
	}

	return out.Close()
}

// SetCell writes a single cell by 1-based row and column. Writing outside the
// sheet's current dimensions extends the sheet.
func (w *Workbook) SetCell(sheet string, row, col int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("invalid cell coordinates (%d, %d): %w", row, col, err)
	}

	if err := w.f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s!%s: %w", sheet, cell, err)
	}

	return nil
}

// SaveAs flushes the workbook to path, overwriting if present.
func (w *Workbook) SaveAs(path string) error {
	if err := w.f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func (w *Workbook) Close() error {
	return w.f.Close()
}
