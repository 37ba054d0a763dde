// Package casino holds the pure calculators behind the /mines, /mines_target
// and /b2b commands.
package casino

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Tiles is the size of the Mines board.
const Tiles = 25

// houseEdge is the payout factor applied on top of the fair odds.
const houseEdge = 0.99

// ErrInvalidInput is wrapped by every calculator error caused by the caller's
// numbers; the wrapped message says which value was wrong.
var ErrInvalidInput = errors.New("invalid input")

// Combo is one (mines, diamonds) board setup and its payout.
type Combo struct {
	Mines      int
	Diamonds   int
	Multiplier float64
}

// MinesResult is the answer to a /mines query.
type MinesResult struct {
	Combo
	WinChance float64 // percent
	Close     []Combo
}

// Multiplier returns the payout for picking diamonds safe tiles on a board
// with mines bombs, rounded to two decimals.
func Multiplier(mines, diamonds int) (float64, error) {
	if mines <= 0 || diamonds <= 0 || mines+diamonds > Tiles {
		return 0, fmt.Errorf("%w: %d mines and %d diamonds", ErrInvalidInput, mines, diamonds)
	}
	return multiplier(mines, diamonds), nil
}

func multiplier(mines, diamonds int) float64 {
	return round(houseEdge*binomial(Tiles, diamonds)/binomial(Tiles-mines, diamonds), 2)
}

// Mines computes the multiplier and winning chance for a board, plus the four
// neighbouring setups whose multipliers come closest.
func Mines(mines, diamonds int) (*MinesResult, error) {
	m, err := Multiplier(mines, diamonds)
	if err != nil {
		return nil, err
	}

	var near []Combo
	for i := max(1, mines-1); i <= min(Tiles-1, mines+1); i++ {
		for j := max(1, diamonds-1); j <= min(Tiles-i, diamonds+1); j++ {
			if i == mines && j == diamonds {
				continue
			}
			near = append(near, Combo{Mines: i, Diamonds: j, Multiplier: multiplier(i, j)})
		}
	}
	sortByDistance(near, m)

	return &MinesResult{
		Combo:     Combo{Mines: mines, Diamonds: diamonds, Multiplier: m},
		WinChance: round(99/m, 5),
		Close:     near[:min(4, len(near))],
	}, nil
}

// MinesTarget returns the five board setups whose multipliers are closest to
// target. target must be greater than 1.
func MinesTarget(target float64) ([]Combo, error) {
	if math.IsNaN(target) || math.IsInf(target, 0) || target <= 1 {
		return nil, fmt.Errorf("%w: target multiplier must be greater than 1", ErrInvalidInput)
	}

	all := make([]Combo, 0, 300)
	for m := 1; m < Tiles; m++ {
		for d := 1; d <= Tiles-m; d++ {
			all = append(all, Combo{Mines: m, Diamonds: d, Multiplier: multiplier(m, d)})
		}
	}
	sortByDistance(all, target)
	return all[:5], nil
}

func sortByDistance(combos []Combo, target float64) {
	sort.SliceStable(combos, func(a, b int) bool {
		return math.Abs(combos[a].Multiplier-target) < math.Abs(combos[b].Multiplier-target)
	})
}

// binomial is exact for n <= 25 in float64.
func binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	k = min(k, n-k)
	r := 1.0
	for i := 1; i <= k; i++ {
		r = r * float64(n-k+i) / float64(i)
	}
	return math.Round(r)
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
