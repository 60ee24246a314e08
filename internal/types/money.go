// README: Common money value object used across modules.
package types

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Cents is an amount in minor currency units. Integer arithmetic keeps
// fee/refund splits exact.
type Cents int64

// FromFloat converts a major-unit amount (e.g. 12.34) to Cents.
func FromFloat(v float64) Cents {
	return Cents(math.Round(v * 100))
}

// Round converts a fractional cent value, rounding half away from zero.
func Round(v float64) Cents {
	return Cents(math.Round(v))
}

func (c Cents) Float() float64 {
	return float64(c) / 100
}

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON renders the amount as a decimal number with two fraction digits.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Cents) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	*c = FromFloat(f)
	return nil
}

// UnmarshalYAML accepts major-unit amounts in seed files (price_per_day: 120.50).
func (c *Cents) UnmarshalYAML(value *yaml.Node) error {
	f, err := strconv.ParseFloat(value.Value, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid amount %q", value.Line, value.Value)
	}
	*c = FromFloat(f)
	return nil
}
