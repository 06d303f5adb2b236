package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"tcontrol/internal/core"
)

const xlsxSheetName = "Trabajos"

// JobsToXLSX renders jobs as an Excel workbook with the same columns as
// the CSV report. Returns ErrNoJobs when the list is empty.
func JobsToXLSX(jobs []core.Job) ([]byte, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(xlsxSheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headers := []string{
		"Fecha", "Cliente", "Descripción", "Ingreso Total",
		"Gasto Empresa", "Gasto Técnico", "Comisión (%)", "Tipo Ingreso",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(xlsxSheetName, cell, header)
	}

	for i, job := range jobs {
		gross, _ := job.GrossIncome().Float64()
		companyExp, _ := job.CompanyExpense.Float64()
		techExp, _ := job.TechnicianExpense.Float64()
		commission := commissionColumn(job)

		row := i + 2
		values := []any{
			job.Date.String(),
			job.Client,
			job.Description,
			gross,
			companyExp,
			techExp,
			commission,
			ChannelLabel(job.Channel()),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(xlsxSheetName, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
