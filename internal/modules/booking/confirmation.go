// README: Human-readable confirmation numbers (CV + 6 timestamp digits + 4 base-36 chars).
package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

const confirmationAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ConfirmationPattern matches every generated confirmation number.
var ConfirmationPattern = regexp.MustCompile(`^CV\d{6}[A-Z0-9]{4}$`)

// ConfirmationGenerator is only probabilistically unique; stores enforce
// uniqueness and the service retries on ErrDuplicateConfirmation.
type ConfirmationGenerator struct {
	now func() time.Time
}

func NewConfirmationGenerator(now func() time.Time) *ConfirmationGenerator {
	if now == nil {
		now = time.Now
	}
	return &ConfirmationGenerator{now: now}
}

func (g *ConfirmationGenerator) Generate() string {
	ms := g.now().UnixMilli() % 1_000_000
	if ms < 0 {
		ms = -ms
	}
	var suffix [4]byte
	max := big.NewInt(int64(len(confirmationAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(fmt.Sprintf("confirmation: read random: %v", err))
		}
		suffix[i] = confirmationAlphabet[n.Int64()]
	}
	return fmt.Sprintf("CV%06d%s", ms, suffix[:])
}
