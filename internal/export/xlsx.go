package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"terra-platform/internal/models"
	"terra-platform/internal/services"
)

// Sheet names of the exported workbook
const (
	MonthlySheet = "Monthly"
	SummarySheet = "Summary"
)

// ContentTypeXLSX is the media type of the exported workbook
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var monthlyHeader = []interface{}{"Period", "CO Average (ppm)", "AOD Average", "Samples"}

// WriteXLSX writes the monthly series and summary of result as a workbook.
// Months without a finite value for a quantity leave that cell empty.
func WriteXLSX(w io.Writer, result *services.SeriesResult) error {
	f, err := buildWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes the workbook to path
func SaveXLSX(path string, result *services.SeriesResult) error {
	f, err := buildWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func buildWorkbook(result *services.SeriesResult) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), MonthlySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	if err := writeMonthly(f, result.Monthly); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, result); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

func writeMonthly(f *excelize.File, monthly []models.MonthlyAverage) error {
	if err := f.SetSheetRow(MonthlySheet, "A1", &monthlyHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetCellStyle(MonthlySheet, "A1", "D1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(MonthlySheet, "A", "D", 18); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	for i, m := range monthly {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{m.Period, cellValue(m.COAverage), cellValue(m.AODAverage), m.Samples}
		if err := f.SetSheetRow(MonthlySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write month %s: %w", m.Period, err)
		}
	}

	return nil
}

func writeSummary(f *excelize.File, result *services.SeriesResult) error {
	rows := [][]interface{}{
		{"Start Date", result.StartDate},
		{"End Date", result.EndDate},
		{"Data Points", result.DataPoints},
		{"Months", result.Months},
		{"Average CO (ppm)", result.Summary.AverageCO},
		{"Max CO (ppm)", result.Summary.MaxCO},
		{"Average AOD", result.Summary.AverageAOD},
		{"Max AOD", result.Summary.MaxAOD},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	return f.SetColWidth(SummarySheet, "A", "B", 20)
}

// cellValue maps NaN to nil so the cell stays empty
func cellValue(v float64) interface{} {
	if !models.IsFinite(v) {
		return nil
	}
	return v
}
