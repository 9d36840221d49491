package spreadsheet

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const historySheet = "History"

var historyHeader = []any{"Called At", "Class", "Group", "Student ID", "Student Name"}

// HistoryRow is one roll-call line of the export.
type HistoryRow struct {
	CalledAt    time.Time
	ClassName   string
	GroupName   string
	StudentID   string
	StudentName string
}

// WriteHistory writes rows as an xlsx workbook to w.
func WriteHistory(w io.Writer, rows []HistoryRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(historySheet)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}
	if err := sw.SetRow("A1", historyHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			row.CalledAt.UTC().Format(time.RFC3339),
			row.ClassName,
			row.GroupName,
			row.StudentID,
			row.StudentName,
		}
		if err := sw.SetRow(axis, values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
