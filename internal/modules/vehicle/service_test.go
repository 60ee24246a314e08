package vehicle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rental/internal/modules/pricing"
	"rental/internal/types"
)

func testCatalog() *MemoryCatalog {
	return NewMemoryCatalog(
		Entry{Vehicle: Vehicle{ID: "van-1", Location: "Denver", Capacity: 4, Position: types.Point{Lat: 39.7392, Lng: -104.9903}}},
		Entry{Vehicle: Vehicle{ID: "van-2", Location: "Boulder", Capacity: 6, Position: types.Point{Lat: 40.0150, Lng: -105.2705}}},
		Entry{Vehicle: Vehicle{ID: "van-3", Location: "denver", Capacity: 2, Position: types.Point{Lat: 39.7400, Lng: -104.9900}}},
	)
}

func TestService_Get(t *testing.T) {
	s := NewService(testCatalog())
	v, err := s.Get(context.Background(), "van-2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v.Location != "Boulder" {
		t.Errorf("location = %q", v.Location)
	}
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing vehicle: got %v", err)
	}
	if _, err := s.Get(context.Background(), " "); !errors.Is(err, ErrNotFound) {
		t.Errorf("blank id: got %v", err)
	}
}

func TestService_SearchByLocation(t *testing.T) {
	s := NewService(testCatalog())
	tests := []struct {
		location string
		want     []types.ID
	}{
		{"Denver", []types.ID{"van-1", "van-3"}},
		{" DENVER ", []types.ID{"van-1", "van-3"}},
		{"Boulder", []types.ID{"van-2"}},
		{"Aspen", nil},
		{"", []types.ID{"van-1", "van-2", "van-3"}},
	}
	for _, tt := range tests {
		got, err := s.Search(context.Background(), Query{Location: tt.location})
		if err != nil {
			t.Fatalf("Search(%q) error = %v", tt.location, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("Search(%q) = %d vehicles, want %d", tt.location, len(got), len(tt.want))
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Errorf("Search(%q)[%d] = %s, want %s", tt.location, i, got[i].ID, tt.want[i])
			}
		}
	}
}

func TestService_SearchNear(t *testing.T) {
	s := NewService(testCatalog())
	origin := types.Point{Lat: 39.7401, Lng: -104.9901}
	got, err := s.Search(context.Background(), Query{Near: &origin, RadiusKm: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "van-3" {
		t.Fatalf("unexpected nearby result: %+v", got)
	}
}

func TestMemoryCatalog_Plan(t *testing.T) {
	c := testCatalog()
	p, err := c.Plan(context.Background(), "van-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.RateCard.LowSeasonMultiplier != 1 || p.RateCard.HighSeasonMultiplier != 1 {
		t.Errorf("missing multipliers should default to 1, got %+v", p.RateCard)
	}
	if _, err := c.Plan(context.Background(), "ghost"); !errors.Is(err, pricing.ErrNoRateCard) {
		t.Errorf("missing plan: got %v", err)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	seed := `
vehicles:
  - id: cv-100
    name: Westfalia
    capacity: 4
    location: Denver
    position: {lat: 39.74, lng: -104.99}
    plan:
      rate_card:
        price_per_day: 120.50
        high_season_multiplier: 1.3
        weekly_discount: 0.1
        cleaning_fee: 75
        cancellation_tiers:
          - {days_before_pickup: 7, fee_percentage: 25}
          - {days_before_pickup: 2, fee_percentage: 50}
      options:
        addons:
          - {id: bikes, price_per_day: 15}
`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	entries, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("LoadCatalogFile() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != "cv-100" || e.Capacity != 4 || e.Location != "Denver" {
		t.Errorf("vehicle fields not decoded: %+v", e.Vehicle)
	}
	card := e.Plan.RateCard
	if card.PricePerDay != 12050 || card.CleaningFee != 7500 {
		t.Errorf("money fields = %s / %s", card.PricePerDay, card.CleaningFee)
	}
	if card.LowSeasonMultiplier != 1 || card.HighSeasonMultiplier != 1.3 {
		t.Errorf("multipliers = %v / %v", card.LowSeasonMultiplier, card.HighSeasonMultiplier)
	}
	if len(card.CancellationTiers) != 2 || card.CancellationTiers[1].FeePercentage != 50 {
		t.Errorf("tiers = %+v", card.CancellationTiers)
	}
	if len(e.Plan.Options.Addons) != 1 || e.Plan.Options.Addons[0].PricePerDay != 1500 {
		t.Errorf("addons = %+v", e.Plan.Options.Addons)
	}
}

func TestLoadCatalogFile_MissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("vehicles:\n  - name: nameless\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalogFile(path); err == nil {
		t.Fatal("expected error for vehicle without id")
	}
}

func TestLoadCatalogFile_Shipped(t *testing.T) {
	entries, err := LoadCatalogFile(filepath.Join("..", "..", "..", "configs", "catalog.yaml"))
	if err != nil {
		t.Fatalf("shipped catalog: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("shipped catalog is empty")
	}
	for _, e := range entries {
		card := e.Plan.RateCard
		if e.Capacity < 1 || card.PricePerDay <= 0 || card.LowSeasonMultiplier <= 0 || card.HighSeasonMultiplier <= 0 {
			t.Errorf("%s: incomplete entry %+v", e.ID, e)
		}
		if _, err := pricing.Quote(card, e.Plan.Options, mustDate(t, "2026-07-01"), mustDate(t, "2026-07-09"), pricing.Selection{}); err != nil {
			t.Errorf("%s: quote: %v", e.ID, err)
		}
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := types.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
