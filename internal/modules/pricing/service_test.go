package pricing

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"rental/internal/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testCard() RateCard {
	return RateCard{
		PricePerDay:           10000, // $100/day
		LowSeasonMultiplier:   0.8,
		HighSeasonMultiplier:  1.25,
		WeeklyDiscount:        0.10,
		MonthlyDiscount:       0.25,
		CleaningFee:           8000,
		SecurityDepositAmount: 50000,
	}
}

func testOptions() Options {
	return Options{
		Addons: []Addon{
			{ID: "gps", PricePerDay: 500},
			{ID: "child_seat", PricePerDay: 750},
		},
		InsurancePackages: []InsurancePackage{
			{ID: "basic", PricePerDay: 1500},
		},
		MileagePackages: []MileagePackage{
			{ID: "standard", IncludedKm: 200},
			{ID: "unlimited", ExtraCost: 1200},
		},
	}
}

func TestQuote_EndToEndScenario(t *testing.T) {
	// $100/day, March (no season), 3 nights, no extras.
	pb, err := Quote(testCard(), testOptions(), date(2026, 3, 10), date(2026, 3, 13), Selection{})
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	checks := []struct {
		name string
		got  types.Cents
		want types.Cents
	}{
		{"base", pb.BasePrice, 30000},
		{"seasonal adjustment", pb.SeasonalAdjustment, 0},
		{"discount", pb.DiscountAmount, 0},
		{"subtotal", pb.Subtotal, 30000},
		{"tax", pb.TaxAmount, 2400},
		{"cleaning", pb.CleaningFee, 8000},
		{"total", pb.TotalPrice, 40400},
		{"deposit", pb.SecurityDeposit, 50000},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if pb.Days != 3 {
		t.Errorf("days = %d, want 3", pb.Days)
	}
}

func TestQuote_DepositNeverInTotal(t *testing.T) {
	card := testCard()
	a, _ := Quote(card, Options{}, date(2026, 3, 10), date(2026, 3, 13), Selection{})
	card.SecurityDepositAmount = 999999
	b, _ := Quote(card, Options{}, date(2026, 3, 10), date(2026, 3, 13), Selection{})
	if a.TotalPrice != b.TotalPrice {
		t.Fatalf("deposit changed total: %s vs %s", a.TotalPrice, b.TotalPrice)
	}
}

func TestQuote_DiscountBoundaries(t *testing.T) {
	tests := []struct {
		days     int
		wantRate float64
	}{
		{1, 0},
		{6, 0},
		{7, 0.10},
		{27, 0.10},
		{28, 0.25},
		{60, 0.25},
	}
	start := date(2026, 3, 1)
	for _, tt := range tests {
		pb, err := Quote(testCard(), Options{}, start, start.AddDate(0, 0, tt.days), Selection{})
		if err != nil {
			t.Fatalf("days=%d: %v", tt.days, err)
		}
		if pb.DiscountRate != tt.wantRate {
			t.Errorf("days=%d discount rate = %v, want %v", tt.days, pb.DiscountRate, tt.wantRate)
		}
		wantDiscount := types.Round(float64(pb.SeasonalPrice) * tt.wantRate)
		if pb.DiscountAmount != wantDiscount {
			t.Errorf("days=%d discount amount = %s, want %s", tt.days, pb.DiscountAmount, wantDiscount)
		}
	}
}

func TestQuote_SeasonalBoundary(t *testing.T) {
	card := testCard()
	tests := []struct {
		name  string
		start time.Time
		want  float64
	}{
		{"May 31 is shoulder", date(2026, 5, 31), 1.0},
		{"June 1 is high", date(2026, 6, 1), card.HighSeasonMultiplier},
		{"August 31 is high", date(2026, 8, 31), card.HighSeasonMultiplier},
		{"September is shoulder", date(2026, 9, 1), 1.0},
		{"November is low", date(2026, 11, 1), card.LowSeasonMultiplier},
		{"January is low", date(2027, 1, 15), card.LowSeasonMultiplier},
		{"February is low", date(2027, 2, 28), card.LowSeasonMultiplier},
		{"March is shoulder", date(2027, 3, 1), 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb, err := Quote(card, Options{}, tt.start, tt.start.AddDate(0, 0, 2), Selection{})
			if err != nil {
				t.Fatalf("Quote() error = %v", err)
			}
			if pb.SeasonalMultiplier != tt.want {
				t.Errorf("multiplier = %v, want %v", pb.SeasonalMultiplier, tt.want)
			}
		})
	}
}

func TestQuote_SeasonUsesStartMonthOnly(t *testing.T) {
	// Starts May 30, runs into June: still shoulder season for the whole rental.
	pb, err := Quote(testCard(), Options{}, date(2026, 5, 30), date(2026, 6, 4), Selection{})
	if err != nil {
		t.Fatal(err)
	}
	if pb.SeasonalMultiplier != 1.0 || pb.SeasonalAdjustment != 0 {
		t.Fatalf("unexpected seasonal values %v / %s", pb.SeasonalMultiplier, pb.SeasonalAdjustment)
	}
}

func TestQuote_FullSelection(t *testing.T) {
	// July (x1.25), 7 days (10% weekly discount).
	sel := Selection{
		AddonIDs:           []string{"gps", "child_seat"},
		InsurancePackageID: "basic",
		MileagePackageID:   "unlimited",
	}
	pb, err := Quote(testCard(), testOptions(), date(2026, 7, 1), date(2026, 7, 8), sel)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	// base 700.00 -> seasonal 875.00 -> discounted 787.50
	if pb.BasePrice != 70000 || pb.SeasonalPrice != 87500 || pb.SeasonalAdjustment != 17500 {
		t.Fatalf("seasonal step wrong: %+v", pb)
	}
	if pb.DiscountAmount != 8750 || pb.DiscountedPrice != 78750 {
		t.Fatalf("discount step wrong: %s / %s", pb.DiscountAmount, pb.DiscountedPrice)
	}
	// addons (5.00 + 7.50) * 7 = 87.50
	if len(pb.Addons) != 2 || pb.AddonTotal != 8750 {
		t.Fatalf("addons wrong: %+v total %s", pb.Addons, pb.AddonTotal)
	}
	if pb.Addons[0].Amount != 3500 || pb.Addons[1].Amount != 5250 {
		t.Fatalf("per-addon costs wrong: %+v", pb.Addons)
	}
	if pb.InsuranceCost != 10500 {
		t.Fatalf("insurance = %s, want 105.00", pb.InsuranceCost)
	}
	if pb.MileageCost != 8400 {
		t.Fatalf("mileage = %s, want 84.00", pb.MileageCost)
	}
	// subtotal 787.50 + 87.50 + 105.00 + 84.00 = 1064.00
	if pb.Subtotal != 106400 {
		t.Fatalf("subtotal = %s", pb.Subtotal)
	}
	// tax 85.12, total 1064.00 + 85.12 + 80.00 = 1229.12
	if pb.TaxAmount != 8512 || pb.TotalPrice != 122912 {
		t.Fatalf("tax/total = %s / %s", pb.TaxAmount, pb.TotalPrice)
	}
}

func TestQuote_MileageWithoutExtraCost(t *testing.T) {
	pb, err := Quote(testCard(), testOptions(), date(2026, 3, 1), date(2026, 3, 4), Selection{MileagePackageID: "standard"})
	if err != nil {
		t.Fatal(err)
	}
	if pb.MileageCost != 0 || pb.MileagePackageID != "standard" {
		t.Fatalf("unexpected mileage %s / %q", pb.MileageCost, pb.MileagePackageID)
	}
}

func TestQuote_PartialDayRoundsUp(t *testing.T) {
	start := date(2026, 3, 1)
	pb, err := Quote(testCard(), Options{}, start, start.Add(49*time.Hour), Selection{})
	if err != nil {
		t.Fatal(err)
	}
	if pb.Days != 3 {
		t.Fatalf("days = %d, want 3", pb.Days)
	}
}

func TestQuote_Errors(t *testing.T) {
	start := date(2026, 3, 1)
	if _, err := Quote(testCard(), testOptions(), start, start, Selection{}); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("zero-length range: got %v", err)
	}
	if _, err := Quote(testCard(), testOptions(), start, start.AddDate(0, 0, 1), Selection{AddonIDs: []string{"jetpack"}}); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("unknown addon: got %v", err)
	}
	if _, err := Quote(testCard(), testOptions(), start, start.AddDate(0, 0, 1), Selection{InsurancePackageID: "gold"}); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("unknown insurance: got %v", err)
	}
	if _, err := Quote(testCard(), testOptions(), start, start.AddDate(0, 0, 1), Selection{MileagePackageID: "lunar"}); !errors.Is(err, ErrUnknownOption) {
		t.Errorf("unknown mileage: got %v", err)
	}
}

func TestQuote_Deterministic(t *testing.T) {
	sel := Selection{AddonIDs: []string{"gps"}, InsurancePackageID: "basic", MileagePackageID: "unlimited"}
	a, err := Quote(testCard(), testOptions(), date(2026, 12, 20), date(2027, 1, 25), sel)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		b, _ := Quote(testCard(), testOptions(), date(2026, 12, 20), date(2027, 1, 25), sel)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("quote differs on run %d:\n%+v\n%+v", i, a, b)
		}
	}
}

type fakeRates map[types.ID]Plan

func (f fakeRates) Plan(_ context.Context, id types.ID) (Plan, error) {
	p, ok := f[id]
	if !ok {
		return Plan{}, ErrNoRateCard
	}
	return p, nil
}

func TestService_QuoteVehicle(t *testing.T) {
	s := NewService(fakeRates{"v1": {RateCard: testCard(), Options: testOptions()}})
	pb, _, err := s.QuoteVehicle(context.Background(), "v1", date(2026, 3, 10), date(2026, 3, 13), Selection{})
	if err != nil {
		t.Fatalf("QuoteVehicle() error = %v", err)
	}
	if pb.TotalPrice != 40400 {
		t.Fatalf("total = %s, want 404.00", pb.TotalPrice)
	}
	if _, _, err := s.QuoteVehicle(context.Background(), "missing", date(2026, 3, 10), date(2026, 3, 13), Selection{}); !errors.Is(err, ErrNoRateCard) {
		t.Fatalf("missing vehicle: got %v", err)
	}
}
