// README: Rate card, rental options and the price breakdown returned by quotes.
package pricing

import (
	"errors"

	"rental/internal/modules/policy"
	"rental/internal/types"
)

var (
	ErrInvalidRange  = errors.New("end date must be after start date")
	ErrUnknownOption = errors.New("unknown rental option")
	ErrNoRateCard    = errors.New("rate card not found")
)

// TaxRate is the flat tax applied to the subtotal.
const TaxRate = 0.08

const (
	weeklyDays  = 7
	monthlyDays = 28
)

// RateCard is a vehicle's pricing policy. Discounts are fractions (0.1 = 10%).
type RateCard struct {
	PricePerDay           types.Cents   `json:"pricePerDay" yaml:"price_per_day"`
	LowSeasonMultiplier   float64       `json:"lowSeasonMultiplier" yaml:"low_season_multiplier"`
	HighSeasonMultiplier  float64       `json:"highSeasonMultiplier" yaml:"high_season_multiplier"`
	WeeklyDiscount        float64       `json:"weeklyDiscount" yaml:"weekly_discount"`
	MonthlyDiscount       float64       `json:"monthlyDiscount" yaml:"monthly_discount"`
	CleaningFee           types.Cents   `json:"cleaningFee" yaml:"cleaning_fee"`
	SecurityDepositAmount types.Cents   `json:"securityDepositAmount" yaml:"security_deposit_amount"`
	MileageIncluded       int           `json:"mileageIncluded" yaml:"mileage_included"`
	AdditionalMileageCost types.Cents   `json:"additionalMileageCost" yaml:"additional_mileage_cost"`
	CancellationTiers     []policy.Tier `json:"cancellationTiers" yaml:"cancellation_tiers"`
}

type Addon struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name,omitempty" yaml:"name"`
	PricePerDay types.Cents `json:"pricePerDay" yaml:"price_per_day"`
}

type InsurancePackage struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name,omitempty" yaml:"name"`
	PricePerDay types.Cents `json:"pricePerDay" yaml:"price_per_day"`
}

// MileagePackage.ExtraCost is charged once per rental day.
type MileagePackage struct {
	ID               string      `json:"id" yaml:"id"`
	IncludedKm       int         `json:"includedKm" yaml:"included_km"`
	AdditionalKmCost types.Cents `json:"additionalKmCost" yaml:"additional_km_cost"`
	ExtraCost        types.Cents `json:"extraCost" yaml:"extra_cost"`
}

// Options are the selectable extras offered with a vehicle.
type Options struct {
	Addons            []Addon            `json:"addons" yaml:"addons"`
	InsurancePackages []InsurancePackage `json:"insurancePackages" yaml:"insurance_packages"`
	MileagePackages   []MileagePackage   `json:"mileagePackages" yaml:"mileage_packages"`
}

// Plan bundles everything needed to price a vehicle.
type Plan struct {
	RateCard RateCard `json:"rateCard" yaml:"rate_card"`
	Options  Options  `json:"options" yaml:"options"`
}

// Selection is what the renter picked. Empty IDs mean "none".
type Selection struct {
	AddonIDs           []string `json:"addonIds"`
	InsurancePackageID string   `json:"insurancePackageId,omitempty"`
	MileagePackageID   string   `json:"mileagePackageId,omitempty"`
}

type LineItem struct {
	ID          string      `json:"id"`
	PricePerDay types.Cents `json:"pricePerDay"`
	Amount      types.Cents `json:"amount"`
}

// PriceBreakdown keeps every intermediate value of a quote so the total can be
// reconstructed.
type PriceBreakdown struct {
	Days               int         `json:"days"`
	PricePerDay        types.Cents `json:"pricePerDay"`
	BasePrice          types.Cents `json:"basePrice"`
	SeasonalMultiplier float64     `json:"seasonalMultiplier"`
	SeasonalAdjustment types.Cents `json:"seasonalAdjustment"`
	SeasonalPrice      types.Cents `json:"seasonalPrice"`
	DiscountRate       float64     `json:"discountRate"`
	DiscountAmount     types.Cents `json:"discountAmount"`
	DiscountedPrice    types.Cents `json:"discountedPrice"`
	Addons             []LineItem  `json:"addons"`
	AddonTotal         types.Cents `json:"addonTotal"`
	Insurance          *LineItem   `json:"insurance,omitempty"`
	InsuranceCost      types.Cents `json:"insuranceCost"`
	MileagePackageID   string      `json:"mileagePackageId,omitempty"`
	MileageCost        types.Cents `json:"mileageCost"`
	Subtotal           types.Cents `json:"subtotal"`
	TaxRate            float64     `json:"taxRate"`
	TaxAmount          types.Cents `json:"taxAmount"`
	CleaningFee        types.Cents `json:"cleaningFee"`
	SecurityDeposit    types.Cents `json:"securityDeposit"`
	TotalPrice         types.Cents `json:"totalPrice"`
}
