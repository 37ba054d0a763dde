package casino

import (
	"errors"
	"math"
	"testing"
)

func TestMultiplier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mines, diamonds int
		want            float64
		wantErr         bool
	}{
		{mines: 1, diamonds: 1, want: 1.03},
		{mines: 3, diamonds: 2, want: 1.29},
		{mines: 4, diamonds: 3, want: 1.71},
		{mines: 24, diamonds: 1, want: 24.75},
		{mines: 0, diamonds: 1, wantErr: true},
		{mines: 1, diamonds: 0, wantErr: true},
		{mines: 20, diamonds: 6, wantErr: true},
	}

	for _, tt := range tests {
		got, err := Multiplier(tt.mines, tt.diamonds)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Multiplier(%d, %d) error = %v, want ErrInvalidInput", tt.mines, tt.diamonds, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Multiplier(%d, %d) = %v, %v; want %v", tt.mines, tt.diamonds, got, err, tt.want)
		}
	}
}

func TestMines(t *testing.T) {
	t.Parallel()

	res, err := Mines(3, 2)
	if err != nil {
		t.Fatalf("Mines() error = %v", err)
	}
	if res.Multiplier != 1.29 || res.WinChance != 76.74419 {
		t.Fatalf("Mines(3, 2) = %+v", res)
	}
	if len(res.Close) != 4 {
		t.Fatalf("len(Close) = %d, want 4", len(res.Close))
	}
	if c := res.Close[0]; c.Mines != 2 || c.Diamonds != 3 || c.Multiplier != 1.29 {
		t.Errorf("Close[0] = %+v, want 2 mines 3 diamonds at 1.29x", c)
	}
	if c := res.Close[1]; c.Mines != 4 || c.Diamonds != 1 {
		t.Errorf("Close[1] = %+v, want 4 mines 1 diamond", c)
	}
	for _, c := range res.Close {
		if c.Mines == 3 && c.Diamonds == 2 {
			t.Error("alternatives include the queried board")
		}
	}
}

func TestMinesEdgeBoards(t *testing.T) {
	t.Parallel()

	res, err := Mines(24, 1)
	if err != nil {
		t.Fatalf("Mines(24, 1) error = %v", err)
	}
	for _, c := range res.Close {
		if c.Mines > 24 || c.Mines+c.Diamonds > Tiles {
			t.Errorf("alternative %+v is not a valid board", c)
		}
	}
}

func TestMinesTarget(t *testing.T) {
	t.Parallel()

	got, err := MinesTarget(1.29)
	if err != nil {
		t.Fatalf("MinesTarget() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	if got[0].Multiplier != 1.29 {
		t.Errorf("closest = %+v, want an exact 1.29x board", got[0])
	}
	for i := 1; i < len(got); i++ {
		if math.Abs(got[i].Multiplier-1.29) < math.Abs(got[i-1].Multiplier-1.29) {
			t.Errorf("results not ordered by distance: %+v", got)
		}
	}

	for _, bad := range []float64{1, 0.5, math.NaN(), math.Inf(1)} {
		if _, err := MinesTarget(bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("MinesTarget(%v) error = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestB2B(t *testing.T) {
	t.Parallel()

	p, err := B2B(100, 2, 10, 3)
	if err != nil {
		t.Fatalf("B2B() error = %v", err)
	}
	wantBets := []float64{100, 110, 121}
	wantResults := []float64{200, 220, 242}
	if len(p.Rounds) != 3 {
		t.Fatalf("rounds = %d, want 3", len(p.Rounds))
	}
	for i, r := range p.Rounds {
		if r.Number != i+1 || !approxEqual(r.Bet, wantBets[i]) || !approxEqual(r.Result, wantResults[i]) {
			t.Errorf("round %d = %+v", i, r)
		}
	}
	if !approxEqual(p.Total(), 662) {
		t.Errorf("Total() = %v, want 662", p.Total())
	}

	def, err := B2B(1, 1, 0, 0)
	if err != nil || len(def.Rounds) != DefaultRounds || def.Total() != DefaultRounds {
		t.Errorf("default rounds: %+v, %v", def, err)
	}
}

func TestB2BInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                 string
		base, mult, increase float64
	}{
		{"zero base", 0, 2, 10},
		{"negative multiplier", 10, -1, 10},
		{"negative increase", 10, 2, -5},
		{"nan", math.NaN(), 2, 10},
	}
	for _, tt := range tests {
		if _, err := B2B(tt.base, tt.mult, tt.increase, 5); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: error = %v, want ErrInvalidInput", tt.name, err)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := map[float64]string{
		3e9:    "3.00B",
		2.5e6:  "2.50M",
		1500:   "1.50K",
		-2000:  "-2.00K",
		12.5:   "12.50",
		0.05:   "0.0500",
		0.005:  "0.005000",
		0.0005: "0.00050000",
	}
	for in, want := range tests {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
