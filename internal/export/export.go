// Package export writes report tables to files: one CSV per table in a
// directory, or one workbook with a sheet per table.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"lodging/internal/metrics"
	"lodging/internal/table"
)

// CSVDir writes each table to dir/<name>.csv, header first, creating dir if
// needed. Missing cells are written as empty fields.
func CSVDir(dir string, tables []table.Named) (err error) {
	defer func() { metrics.RecordExport("csv", err) }()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: csv dir: %w", err)
	}
	for _, nt := range tables {
		if err := writeCSV(filepath.Join(dir, nt.Name+".csv"), nt.Table); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, t *table.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(t.Records()); err != nil {
		_ = f.Close()
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	return nil
}

// maxSheetName is Excel's limit on sheet name length.
const maxSheetName = 31

// SheetName trims name to a valid, unique sheet name given the names already
// used.
func SheetName(name string, used map[string]bool) string {
	base := []rune(name)
	if len(base) > maxSheetName {
		base = base[:maxSheetName]
	}
	cand := string(base)
	for i := 2; used[cand]; i++ {
		suffix := fmt.Sprintf("~%d", i)
		keep := min(len(base), maxSheetName-len(suffix))
		cand = string(base[:keep]) + suffix
	}
	used[cand] = true
	return cand
}

// XLSX writes all tables into one workbook at path, a sheet per table in
// order. Float cells stay numeric; missing cells are left blank.
func XLSX(path string, tables []table.Named) (err error) {
	defer func() { metrics.RecordExport("xlsx", err) }()

	f := excelize.NewFile()
	defer f.Close()

	used := map[string]bool{}
	first := true
	for _, nt := range tables {
		sheet := SheetName(nt.Name, used)
		if first {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("export: sheet %s: %w", sheet, err)
			}
			first = false
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("export: sheet %s: %w", sheet, err)
		}
		if err := fillSheet(f, sheet, nt.Table); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}

func fillSheet(f *excelize.File, sheet string, t *table.Table) error {
	header := make([]any, t.Width())
	for i, n := range t.Names() {
		header[i] = n
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("export: %s header: %w", sheet, err)
	}
	for r := 0; r < t.Len(); r++ {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		row := []any(t.Row(r))
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("export: %s row %d: %w", sheet, r, err)
		}
	}
	return nil
}
