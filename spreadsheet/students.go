// Package spreadsheet reads student rosters from and writes roll-call history
// to xlsx workbooks.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// StudentRow is one roster line. Weight is nil when the cell is blank.
type StudentRow struct {
	Line      int
	StudentID string
	Name      string
	Weight    *float64
}

// SkippedRow explains why a roster line was not imported.
type SkippedRow struct {
	Line   int
	Reason string
}

// ParseStudents reads the first sheet of an xlsx roster. Row 1 is a header;
// column A is the student number, B the name and C an optional weight.
func ParseStudents(r io.Reader) ([]StudentRow, []SkippedRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, nil, errors.New("excel file does not contain any sheets")
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("read rows from sheet %s: %w", sheetName, err)
	}

	var (
		students []StudentRow
		skipped  []SkippedRow
	)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		line := i + 1
		studentID := cell(row, 0)
		name := cell(row, 1)
		rawWeight := cell(row, 2)

		if studentID == "" && name == "" && rawWeight == "" {
			continue
		}
		if name == "" {
			skipped = append(skipped, SkippedRow{Line: line, Reason: "missing name"})
			continue
		}

		student := StudentRow{Line: line, StudentID: studentID, Name: name}
		if rawWeight != "" {
			weight, err := strconv.ParseFloat(rawWeight, 64)
			if err != nil || weight < 0 {
				skipped = append(skipped, SkippedRow{Line: line, Reason: fmt.Sprintf("invalid weight %q", rawWeight)})
				continue
			}
			student.Weight = &weight
		}
		students = append(students, student)
	}
	return students, skipped, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
