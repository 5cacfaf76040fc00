package analytics

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{
	"Date", "Slot Views", "Bookings Created", "Bookings Canceled",
	"Bookings Rescheduled", "Webhooks Delivered", "Webhooks Failed",
}

// ExportExcel writes the rollups as an Excel workbook with one sheet.
func ExportExcel(w io.Writer, rollups []DayRollup) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Daily Rollups"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	// Bold header, same as the audit exports this was lifted from.
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for rowIdx, r := range rollups {
		values := []interface{}{
			r.Date, r.SlotViews, r.BookingsCreated, r.BookingsCanceled,
			r.BookingsRescheduled, r.WebhooksDelivered, r.WebhooksFailed,
		}
		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write rollup row %d: %w", rowIdx+1, err)
			}
		}
	}

	return f.Write(w)
}
