package excel

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"obsnote/domain/comparison"
)

const (
	fieldsSheet  = "Fields"
	changesSheet = "Changes"
)

// WriteComparison writes a bubble-up result as a workbook with one row per
// compared field and one row per value change.
func WriteComparison(w io.Writer, result *comparison.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", fieldsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(changesSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	fieldRows := [][]interface{}{{"Field", "Max Difference", "JS Divergence", "P Value"}}
	changeRows := [][]interface{}{{"Field", "Value", "Selection %", "Baseline %", "Change %"}}
	for _, s := range result.Summaries {
		fieldRows = append(fieldRows, []interface{}{s.Field, s.Divergence, s.JSDivergence, s.PValue})
		for _, c := range s.Changes {
			changeRows = append(changeRows, []interface{}{
				s.Field, c.Value, c.SelectionPercentage * 100, c.BaselinePercentage * 100, changeCell(c.ChangePercentage),
			})
		}
	}

	if err := writeRows(f, fieldsSheet, fieldRows); err != nil {
		return err
	}
	if err := writeRows(f, changesSheet, changeRows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func changeCell(c comparison.ChangePercentage) interface{} {
	v := float64(c)
	if math.IsInf(v, 1) {
		return "Infinity"
	}
	if math.IsInf(v, -1) || math.IsNaN(v) {
		return ""
	}
	return v
}
