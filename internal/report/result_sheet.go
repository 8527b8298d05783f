package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/stemsi/hoa-backend/internal/model"
)

const resultSheetName = "Results"

var resultSheetHeader = []string{"Student", "Score", "TimeSpent (min)"}

// ResultSheetFilename builds the download name for an exam's result sheet.
func ResultSheetFilename(title, ext string) string {
	return slug(title) + "_results." + ext
}

// TimeSpentMinutes renders the elapsed time rounded to whole minutes, or
// "-" when the attempt has no recorded end.
func TimeSpentMinutes(row model.ExamResultRow) string {
	d, ok := row.TimeSpent()
	if !ok {
		return "-"
	}
	return strconv.Itoa(int(math.Round(d.Minutes())))
}

// WriteResultSheetCSV writes the admin result sheet as CSV.
func WriteResultSheetCSV(w io.Writer, rows []model.ExamResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultSheetHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.StudentName, strconv.Itoa(r.Correct), TimeSpentMinutes(r)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResultSheetXLSX writes the admin result sheet as an Excel workbook
// with an extra column for the submit reason and integrity flag.
func WriteResultSheetXLSX(w io.Writer, title string, rows []model.ExamResultRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultSheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	if err := f.SetCellValue(resultSheetName, "A1", title); err != nil {
		return err
	}
	header := []interface{}{"Student", "Score", "Total", "TimeSpent (min)", "Submit Reason", "Flagged"}
	if err := f.SetSheetRow(resultSheetName, "A3", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(resultSheetName, "A1", "F3", bold); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.StudentName,
			r.Correct,
			r.Total,
			TimeSpentMinutes(r),
			string(r.SubmitReason),
			boolField(r.IntegrityFlag),
		}
		if err := f.SetSheetRow(resultSheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(resultSheetName, "A", "A", 28); err != nil {
		return err
	}
	return f.Write(w)
}
