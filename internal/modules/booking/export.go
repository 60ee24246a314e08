// README: Admin export of bookings to an Excel workbook.
package booking

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"rental/internal/types"
)

const exportSheet = "Bookings"

var exportHeaders = []string{
	"Confirmation", "Booking ID", "Vehicle", "User", "Start", "End", "Days", "Guests",
	"Status", "Payment", "Total", "Deposit", "Cancellation fee", "Refund", "Created",
}

// ExportXLSX writes one row per booking, in the given order.
func ExportXLSX(bookings []*Booking) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("error creating sheet: %v", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, h)
		f.SetCellStyle(exportSheet, cell, cell, header)
	}

	for r, b := range bookings {
		var fee, refund any
		if c := b.Cancellation; c != nil {
			fee, refund = c.Fee.Float(), c.Refund.Float()
		}
		values := []any{
			b.ConfirmationNumber,
			string(b.ID),
			string(b.VehicleID),
			string(b.UserID),
			types.FormatDate(b.StartDate),
			types.FormatDate(b.EndDate),
			b.Price.Days,
			b.GuestCount,
			string(b.Status),
			string(b.PaymentStatus),
			b.TotalAmount.Float(),
			b.Price.SecurityDeposit.Float(),
			fee,
			refund,
			b.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}
		for c, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(exportSheet, cell, v)
		}
	}
	f.SetColWidth(exportSheet, "A", "B", 16)
	f.SetColWidth(exportSheet, "C", "O", 13)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
