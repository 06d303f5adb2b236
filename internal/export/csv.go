// Package export renders job lists into downloadable report files.
//
// The CSV layout is consumed by spreadsheet tools the business already
// uses, so header names, column order and quoting are fixed: text
// columns are always double-quoted (with embedded quotes doubled),
// numeric columns are written bare.
package export

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"tcontrol/internal/core"
)

// ErrNoJobs is returned when there is nothing to export.
var ErrNoJobs = errors.New("export: no jobs to export")

var csvHeader = strings.Join([]string{
	"Fecha", "Cliente", "Descripción", "Ingreso Total",
	"Gasto Empresa", "Gasto Técnico", "Comisión (%)", "Tipo Ingreso",
}, ",")

var channelLabels = map[core.IncomeChannel]string{
	core.ChannelTransfer: "Transferencia",
	core.ChannelCash:     "Efectivo",
	core.ChannelCardLink: "Link Pago",
	core.ChannelNone:     "N/A",
}

// ChannelLabel returns the Spanish label for an income channel.
func ChannelLabel(ch core.IncomeChannel) string {
	if label, ok := channelLabels[ch]; ok {
		return label
	}
	return "N/A"
}

// JobsToCSV renders jobs as a comma-delimited report, one row per job
// in the order given. Returns ErrNoJobs when the list is empty.
func JobsToCSV(jobs []core.Job) ([]byte, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}

	var b strings.Builder
	b.WriteString(csvHeader)
	for _, job := range jobs {
		b.WriteByte('\n')
		writeCSVRow(&b, job)
	}
	return []byte(b.String()), nil
}

func writeCSVRow(b *strings.Builder, job core.Job) {
	cols := []string{
		quote(job.Date.String()),
		quote(job.Client),
		quote(job.Description),
		job.GrossIncome().String(),
		job.CompanyExpense.String(),
		job.TechnicianExpense.String(),
		commissionColumn(job),
		quote(ChannelLabel(job.Channel())),
	}
	b.WriteString(strings.Join(cols, ","))
}

// commissionColumn reports the rate frozen on the job, or the historic
// default of 50 for rows recorded before freezing existed.
func commissionColumn(job core.Job) string {
	if job.AppliedCommissionPct.Valid {
		return job.AppliedCommissionPct.Decimal.String()
	}
	return decimal.NewFromInt(50).String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
