package casino

import (
	"fmt"
	"math"
)

// DefaultRounds is the number of rounds a B2B table reports.
const DefaultRounds = 15

// Round is one step of a back-to-back progression.
type Round struct {
	Number int
	Bet    float64
	Result float64
	Total  float64 // running sum of Result
}

// Progression is the outcome of a B2B calculation.
type Progression struct {
	Base       float64
	Multiplier float64
	Increase   float64 // percent per round
	Rounds     []Round
}

// Total is the cumulative result of the last reported round.
func (p *Progression) Total() float64 {
	if len(p.Rounds) == 0 {
		return 0
	}
	return p.Rounds[len(p.Rounds)-1].Total
}

// B2B computes rounds steps of a progression that starts at base, pays bet
// times multiplier per round and raises the bet by increase percent.
func B2B(base, multiplier, increase float64, rounds int) (*Progression, error) {
	for _, v := range []float64{base, multiplier, increase} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: values must be finite numbers", ErrInvalidInput)
		}
	}
	if base <= 0 || multiplier <= 0 || increase < 0 {
		return nil, fmt.Errorf("%w: base and multiplier must be positive and increase non-negative", ErrInvalidInput)
	}
	if rounds <= 0 {
		rounds = DefaultRounds
	}

	p := &Progression{Base: base, Multiplier: multiplier, Increase: increase, Rounds: make([]Round, 0, rounds)}
	bet, total := base, 0.0
	for i := 1; i <= rounds; i++ {
		result := bet * multiplier
		total += result
		p.Rounds = append(p.Rounds, Round{Number: i, Bet: bet, Result: result, Total: total})
		bet *= 1 + increase/100
	}
	return p, nil
}

// FormatNumber renders n with a B/M/K suffix for large magnitudes and extra
// precision for small ones.
func FormatNumber(n float64) string {
	a := math.Abs(n)
	switch {
	case a >= 1e9:
		return fmt.Sprintf("%.2fB", n/1e9)
	case a >= 1e6:
		return fmt.Sprintf("%.2fM", n/1e6)
	case a >= 1e3:
		return fmt.Sprintf("%.2fK", n/1e3)
	case a < 0.001:
		return fmt.Sprintf("%.8f", n)
	case a < 0.01:
		return fmt.Sprintf("%.6f", n)
	case a < 0.1:
		return fmt.Sprintf("%.4f", n)
	default:
		return fmt.Sprintf("%.2f", n)
	}
}
