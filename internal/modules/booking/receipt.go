// README: Booking receipt rendered as PDF.
package booking

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"rental/internal/types"
)

// Receipt renders b with its full price breakdown.
func Receipt(b *Booking, issuedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking "+b.ConfirmationNumber, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BOOKING RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range []string{
		"Confirmation : " + b.ConfirmationNumber,
		"Status       : " + string(b.Status),
		"Vehicle      : " + string(b.VehicleID),
		"Rental       : " + types.FormatDate(b.StartDate) + " to " + types.FormatDate(b.EndDate),
		"Pickup       : " + dash(b.PickupLocation),
		"Return       : " + dash(b.ReturnLocation),
		fmt.Sprintf("Guests       : %d", b.GuestCount),
		"Issued       : " + issuedAt.UTC().Format("2006-01-02 15:04") + " UTC",
	} {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	p := b.Price
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Price breakdown")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	row := func(label string, amount types.Cents) {
		pdf.CellFormat(120, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, amount.String(), "", 1, "R", false, 0, "")
	}
	row(fmt.Sprintf("Base (%d day(s) x %s)", p.Days, p.PricePerDay), p.BasePrice)
	if p.SeasonalAdjustment != 0 {
		row(fmt.Sprintf("Seasonal adjustment (x%.2f)", p.SeasonalMultiplier), p.SeasonalAdjustment)
	}
	if p.DiscountAmount != 0 {
		row(fmt.Sprintf("Duration discount (%.0f%%)", p.DiscountRate*100), -p.DiscountAmount)
	}
	for _, a := range p.Addons {
		row("Add-on "+a.ID, a.Amount)
	}
	if p.Insurance != nil {
		row("Insurance "+p.Insurance.ID, p.InsuranceCost)
	}
	if p.MileageCost != 0 {
		row("Mileage package "+p.MileagePackageID, p.MileageCost)
	}
	row("Subtotal", p.Subtotal)
	row(fmt.Sprintf("Tax (%.0f%%)", p.TaxRate*100), p.TaxAmount)
	row("Cleaning fee", p.CleaningFee)

	pdf.SetFont("Helvetica", "B", 12)
	row("Total", p.TotalPrice)
	pdf.SetFont("Helvetica", "", 11)
	row("Security deposit (held, not charged)", p.SecurityDeposit)

	if c := b.Cancellation; c != nil {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, "Cancellation")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 6, "Date   : "+c.Date.UTC().Format("2006-01-02 15:04")+" UTC")
		pdf.Ln(6)
		pdf.MultiCell(0, 6, "Reason : "+dash(c.Reason), "", "", false)
		row("Cancellation fee", c.Fee)
		row("Refund", c.Refund)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
