// README: Pricing service computes rental quotes from a vehicle's rate card.
package pricing

import (
	"context"
	"fmt"
	"time"

	"rental/internal/metrics"
	"rental/internal/types"
)

// RateSource resolves the pricing plan of a vehicle.
type RateSource interface {
	Plan(ctx context.Context, vehicleID types.ID) (Plan, error)
}

type Service struct {
	rates RateSource
}

func NewService(rates RateSource) *Service {
	return &Service{rates: rates}
}

// QuoteVehicle prices a rental of vehicleID for [start, end).
func (s *Service) QuoteVehicle(ctx context.Context, vehicleID types.ID, start, end time.Time, sel Selection) (PriceBreakdown, Plan, error) {
	plan, err := s.rates.Plan(ctx, vehicleID)
	if err != nil {
		return PriceBreakdown{}, Plan{}, err
	}
	pb, err := Quote(plan.RateCard, plan.Options, start, end, sel)
	if err == nil {
		metrics.IncQuote()
	}
	return pb, plan, err
}

// Plan returns the vehicle's rate card and options as configured in the catalog.
func (s *Service) Plan(ctx context.Context, vehicleID types.ID) (Plan, error) {
	return s.rates.Plan(ctx, vehicleID)
}

// SeasonalMultiplier picks the multiplier from the month of start only.
func SeasonalMultiplier(card RateCard, start time.Time) float64 {
	switch start.Month() {
	case time.June, time.July, time.August:
		return card.HighSeasonMultiplier
	case time.November, time.December, time.January, time.February:
		return card.LowSeasonMultiplier
	default:
		return 1.0
	}
}

// DurationDiscount returns the discount rate that applies to a rental of days days.
func DurationDiscount(card RateCard, days int) float64 {
	switch {
	case days >= monthlyDays:
		return card.MonthlyDiscount
	case days >= weeklyDays:
		return card.WeeklyDiscount
	default:
		return 0
	}
}

// Quote is a pure function of its inputs. Every monetary step is rounded to
// whole cents before it feeds the next one.
func Quote(card RateCard, opts Options, start, end time.Time, sel Selection) (PriceBreakdown, error) {
	days := types.DaysCeil(start, end)
	if days <= 0 {
		return PriceBreakdown{}, ErrInvalidRange
	}
	n := types.Cents(days)

	pb := PriceBreakdown{
		Days:            days,
		PricePerDay:     card.PricePerDay,
		BasePrice:       card.PricePerDay * n,
		TaxRate:         TaxRate,
		CleaningFee:     card.CleaningFee,
		SecurityDeposit: card.SecurityDepositAmount,
		Addons:          []LineItem{},
	}

	pb.SeasonalMultiplier = SeasonalMultiplier(card, start)
	pb.SeasonalPrice = types.Round(float64(pb.BasePrice) * pb.SeasonalMultiplier)
	pb.SeasonalAdjustment = pb.SeasonalPrice - pb.BasePrice

	pb.DiscountRate = DurationDiscount(card, days)
	pb.DiscountedPrice = types.Round(float64(pb.SeasonalPrice) * (1 - pb.DiscountRate))
	pb.DiscountAmount = pb.SeasonalPrice - pb.DiscountedPrice

	for _, id := range sel.AddonIDs {
		a, ok := findAddon(opts.Addons, id)
		if !ok {
			return PriceBreakdown{}, fmt.Errorf("%w: addon %q", ErrUnknownOption, id)
		}
		item := LineItem{ID: a.ID, PricePerDay: a.PricePerDay, Amount: a.PricePerDay * n}
		pb.Addons = append(pb.Addons, item)
		pb.AddonTotal += item.Amount
	}

	if sel.InsurancePackageID != "" {
		ins, ok := findInsurance(opts.InsurancePackages, sel.InsurancePackageID)
		if !ok {
			return PriceBreakdown{}, fmt.Errorf("%w: insurance %q", ErrUnknownOption, sel.InsurancePackageID)
		}
		pb.Insurance = &LineItem{ID: ins.ID, PricePerDay: ins.PricePerDay, Amount: ins.PricePerDay * n}
		pb.InsuranceCost = pb.Insurance.Amount
	}

	if sel.MileagePackageID != "" {
		mp, ok := findMileage(opts.MileagePackages, sel.MileagePackageID)
		if !ok {
			return PriceBreakdown{}, fmt.Errorf("%w: mileage package %q", ErrUnknownOption, sel.MileagePackageID)
		}
		pb.MileagePackageID = mp.ID
		if mp.ExtraCost != 0 {
			pb.MileageCost = mp.ExtraCost * n
		}
	}

	pb.Subtotal = pb.DiscountedPrice + pb.AddonTotal + pb.InsuranceCost + pb.MileageCost
	pb.TaxAmount = types.Round(float64(pb.Subtotal) * TaxRate)
	pb.TotalPrice = pb.Subtotal + pb.TaxAmount + pb.CleaningFee
	return pb, nil
}

func findAddon(list []Addon, id string) (Addon, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return Addon{}, false
}

func findInsurance(list []InsurancePackage, id string) (InsurancePackage, bool) {
	for _, p := range list {
		if p.ID == id {
			return p, true
		}
	}
	return InsurancePackage{}, false
}

func findMileage(list []MileagePackage, id string) (MileagePackage, bool) {
	for _, p := range list {
		if p.ID == id {
			return p, true
		}
	}
	return MileagePackage{}, false
}
