// README: Pricing store backed by PostgreSQL (rate_cards table).
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rental/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Plan(ctx context.Context, vehicleID types.ID) (Plan, error) {
	row := s.db.QueryRow(ctx, `
		SELECT price_per_day, low_season_multiplier, high_season_multiplier,
		       weekly_discount, monthly_discount, cleaning_fee, security_deposit,
		       mileage_included, additional_mileage_cost, cancellation_tiers, options
		FROM rate_cards
		WHERE vehicle_id = $1`, string(vehicleID),
	)

	var p Plan
	var tiers, options []byte
	c := &p.RateCard
	err := row.Scan(
		&c.PricePerDay, &c.LowSeasonMultiplier, &c.HighSeasonMultiplier,
		&c.WeeklyDiscount, &c.MonthlyDiscount, &c.CleaningFee, &c.SecurityDepositAmount,
		&c.MileageIncluded, &c.AdditionalMileageCost, &tiers, &options,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Plan{}, ErrNoRateCard
	}
	if err != nil {
		return Plan{}, err
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &c.CancellationTiers); err != nil {
			return Plan{}, fmt.Errorf("decode cancellation tiers for %s: %w", vehicleID, err)
		}
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &p.Options); err != nil {
			return Plan{}, fmt.Errorf("decode options for %s: %w", vehicleID, err)
		}
	}
	return p, nil
}

// SavePlan upserts the plan of a vehicle. Used when seeding the catalog.
func (s *Store) SavePlan(ctx context.Context, vehicleID types.ID, p Plan) error {
	tiers, err := json.Marshal(p.RateCard.CancellationTiers)
	if err != nil {
		return err
	}
	options, err := json.Marshal(p.Options)
	if err != nil {
		return err
	}
	c := p.RateCard
	_, err = s.db.Exec(ctx, `
		INSERT INTO rate_cards (
			vehicle_id, price_per_day, low_season_multiplier, high_season_multiplier,
			weekly_discount, monthly_discount, cleaning_fee, security_deposit,
			mileage_included, additional_mileage_cost, cancellation_tiers, options
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (vehicle_id) DO UPDATE SET
			price_per_day = EXCLUDED.price_per_day,
			low_season_multiplier = EXCLUDED.low_season_multiplier,
			high_season_multiplier = EXCLUDED.high_season_multiplier,
			weekly_discount = EXCLUDED.weekly_discount,
			monthly_discount = EXCLUDED.monthly_discount,
			cleaning_fee = EXCLUDED.cleaning_fee,
			security_deposit = EXCLUDED.security_deposit,
			mileage_included = EXCLUDED.mileage_included,
			additional_mileage_cost = EXCLUDED.additional_mileage_cost,
			cancellation_tiers = EXCLUDED.cancellation_tiers,
			options = EXCLUDED.options`,
		string(vehicleID),
		int64(c.PricePerDay), c.LowSeasonMultiplier, c.HighSeasonMultiplier,
		c.WeeklyDiscount, c.MonthlyDiscount, int64(c.CleaningFee), int64(c.SecurityDepositAmount),
		c.MileageIncluded, int64(c.AdditionalMileageCost), tiers, options,
	)
	return err
}
