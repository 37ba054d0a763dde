package ratelimit

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestLimiter(t *testing.T, policies map[Category]Policy, opts ...Option) (*Limiter, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	l, err := New(policies, append([]Option{WithClock(clock)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l, clock
}

func mustCheck(t *testing.T, l *Limiter, userID int64, c Category) bool {
	t.Helper()
	ok, err := l.Check(userID, c)
	if err != nil {
		t.Fatalf("Check(%d, %s) error = %v", userID, c, err)
	}
	return ok
}

func TestNew_RejectsInvalidPolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		policies map[Category]Policy
	}{
		{name: "nil map", policies: nil},
		{name: "zero max events", policies: map[Category]Policy{CategoryCommand: {MaxEvents: 0, Window: time.Second}}},
		{name: "negative max events", policies: map[Category]Policy{CategoryCommand: {MaxEvents: -1, Window: time.Second}}},
		{name: "zero window", policies: map[Category]Policy{CategoryCommand: {MaxEvents: 1}}},
		{name: "negative window", policies: map[Category]Policy{CategoryCommand: {MaxEvents: 1, Window: -time.Second}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.policies)
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Fatalf("New() error = %v, want ErrInvalidPolicy", err)
			}
		})
	}
}

func TestCheck_AllowsUpToMaxThenRejects(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{1, 3, 20} {
		l, _ := newTestLimiter(t, map[Category]Policy{CategoryAIRequest: {MaxEvents: limit, Window: time.Minute}})
		for i := 0; i < limit; i++ {
			if !mustCheck(t, l, 1, CategoryAIRequest) {
				t.Fatalf("limit=%d: call %d rejected, want allowed", limit, i+1)
			}
		}
		if mustCheck(t, l, 1, CategoryAIRequest) {
			t.Fatalf("limit=%d: call %d allowed, want rejected", limit, limit+1)
		}
	}
}

func TestCheck_SlidingWindowScenario(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(t, map[Category]Policy{CategoryCommand: {MaxEvents: 3, Window: 60 * time.Second}})

	steps := []struct {
		at   time.Duration
		want bool
	}{
		{at: 0, want: true},
		{at: 1 * time.Second, want: true},
		{at: 2 * time.Second, want: true},
		{at: 3 * time.Second, want: false},
		{at: 60 * time.Second, want: false},
		{at: 61 * time.Second, want: true},
		{at: 61 * time.Second, want: false},
		{at: 62 * time.Second, want: true},
	}

	for i, s := range steps {
		clock.Advance(epoch.Add(s.at).Sub(clock.Now()))
		if got := mustCheck(t, l, 1, CategoryCommand); got != s.want {
			t.Fatalf("step %d at t=%s: Check() = %v, want %v", i, s.at, got, s.want)
		}
	}
}

func TestCheck_RejectionIsNotRecorded(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(t, map[Category]Policy{CategoryCommand: {MaxEvents: 1, Window: 10 * time.Second}})

	mustCheck(t, l, 1, CategoryCommand)
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		if mustCheck(t, l, 1, CategoryCommand) {
			t.Fatalf("attempt %d allowed inside window", i)
		}
	}
	// Only the first event counts: 11s after it the window is free again.
	clock.Advance(6 * time.Second)
	if !mustCheck(t, l, 1, CategoryCommand) {
		t.Fatal("rejected attempts extended the window")
	}
}

func TestCheck_UnknownCategory(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, map[Category]Policy{CategoryCommand: {MaxEvents: 1, Window: time.Second}})

	if _, err := l.Check(1, CategoryImageGeneration); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("Check() error = %v, want ErrUnknownCategory", err)
	}
	if _, err := l.Remaining(1, "bogus"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("Remaining() error = %v, want ErrUnknownCategory", err)
	}
	if _, err := l.RetryAfter(1, "bogus"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("RetryAfter() error = %v, want ErrUnknownCategory", err)
	}
	if err := l.Reset(1, "bogus"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("Reset() error = %v, want ErrUnknownCategory", err)
	}
	if l.Len() != 0 {
		t.Fatalf("unknown category created %d records", l.Len())
	}
}

func TestRemaining(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(t, map[Category]Policy{CategoryCryptoLookup: {MaxEvents: 4, Window: time.Minute}})

	for k := 0; k <= 6; k++ {
		got, err := l.Remaining(7, CategoryCryptoLookup)
		if err != nil {
			t.Fatalf("Remaining() error = %v", err)
		}
		want := max(4-k, 0)
		if got != want {
			t.Fatalf("after %d checks Remaining() = %d, want %d", k, got, want)
		}
		mustCheck(t, l, 7, CategoryCryptoLookup)
	}

	clock.Advance(time.Minute + time.Second)
	if got, _ := l.Remaining(7, CategoryCryptoLookup); got != 4 {
		t.Fatalf("after window Remaining() = %d, want 4", got)
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(t, map[Category]Policy{CategoryImageGeneration: {MaxEvents: 2, Window: 5 * time.Minute}})

	if d, _ := l.RetryAfter(1, CategoryImageGeneration); d != 0 {
		t.Fatalf("RetryAfter() with no events = %s, want 0", d)
	}

	mustCheck(t, l, 1, CategoryImageGeneration)
	clock.Advance(time.Minute)
	mustCheck(t, l, 1, CategoryImageGeneration)

	d, err := l.RetryAfter(1, CategoryImageGeneration)
	if err != nil {
		t.Fatalf("RetryAfter() error = %v", err)
	}
	if d <= 4*time.Minute || d > 4*time.Minute+time.Second {
		t.Fatalf("RetryAfter() = %s, want just over 4m", d)
	}

	clock.Advance(d)
	if !mustCheck(t, l, 1, CategoryImageGeneration) {
		t.Fatal("Check() rejected after waiting RetryAfter")
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, map[Category]Policy{
		CategoryCommand:   {MaxEvents: 1, Window: time.Hour},
		CategoryAIRequest: {MaxEvents: 1, Window: time.Hour},
	})

	mustCheck(t, l, 1, CategoryCommand)
	mustCheck(t, l, 1, CategoryAIRequest)

	if err := l.Reset(1, CategoryCommand); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if !mustCheck(t, l, 1, CategoryCommand) {
		t.Fatal("Check() after Reset rejected")
	}
	if mustCheck(t, l, 1, CategoryAIRequest) {
		t.Fatal("Reset cleared an unrelated category")
	}
}

func TestResetUser(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, map[Category]Policy{
		CategoryCommand:   {MaxEvents: 1, Window: time.Hour},
		CategoryAIRequest: {MaxEvents: 1, Window: time.Hour},
	})

	for _, user := range []int64{1, 2} {
		mustCheck(t, l, user, CategoryCommand)
		mustCheck(t, l, user, CategoryAIRequest)
	}

	l.ResetUser(1)

	if !mustCheck(t, l, 1, CategoryCommand) || !mustCheck(t, l, 1, CategoryAIRequest) {
		t.Fatal("ResetUser did not clear every category of the user")
	}
	if mustCheck(t, l, 2, CategoryCommand) {
		t.Fatal("ResetUser cleared another user")
	}
}

func TestClearAll(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, map[Category]Policy{
		CategoryCommand:   {MaxEvents: 1, Window: time.Hour},
		CategoryAIRequest: {MaxEvents: 1, Window: time.Hour},
	})

	for _, user := range []int64{1, 2, 3} {
		mustCheck(t, l, user, CategoryCommand)
		mustCheck(t, l, user, CategoryAIRequest)
	}

	l.ClearAll()

	if l.Len() != 0 {
		t.Fatalf("Len() after ClearAll = %d, want 0", l.Len())
	}
	for _, user := range []int64{1, 2, 3} {
		for _, c := range []Category{CategoryCommand, CategoryAIRequest} {
			if got, _ := l.Remaining(user, c); got != 1 {
				t.Fatalf("Remaining(%d, %s) after ClearAll = %d, want 1", user, c, got)
			}
		}
	}
}

func TestUsersDoNotInterfere(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, map[Category]Policy{CategoryAIRequest: {MaxEvents: 3, Window: time.Minute}})

	for i := 0; i < 5; i++ {
		mustCheck(t, l, 1, CategoryAIRequest)
	}

	if got, _ := l.Remaining(2, CategoryAIRequest); got != 3 {
		t.Fatalf("Remaining(U2) = %d, want 3", got)
	}
	if !mustCheck(t, l, 2, CategoryAIRequest) {
		t.Fatal("U2 rejected after U1 exhausted its quota")
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(t, map[Category]Policy{
		CategoryCommand:         {MaxEvents: 5, Window: time.Minute},
		CategoryImageGeneration: {MaxEvents: 5, Window: time.Hour},
	})

	mustCheck(t, l, 1, CategoryCommand)
	mustCheck(t, l, 2, CategoryCommand)
	mustCheck(t, l, 1, CategoryImageGeneration)

	if removed := l.Sweep(); removed != 0 {
		t.Fatalf("Sweep() inside window removed %d records", removed)
	}

	clock.Advance(2 * time.Minute)
	if removed := l.Sweep(); removed != 2 {
		t.Fatalf("Sweep() removed %d records, want 2", removed)
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	if got, _ := l.Remaining(1, CategoryImageGeneration); got != 4 {
		t.Fatalf("Sweep dropped a live event: Remaining = %d, want 4", got)
	}
}

func TestHooks(t *testing.T) {
	t.Parallel()

	var allowed, denied atomic.Int32
	l, _ := newTestLimiter(t,
		map[Category]Policy{CategoryAdmin: {MaxEvents: 2, Window: time.Minute}},
		WithOnAllowed(func(int64, Category) { allowed.Add(1) }),
		WithOnDenied(func(int64, Category) { denied.Add(1) }),
	)

	for i := 0; i < 5; i++ {
		mustCheck(t, l, 1, CategoryAdmin)
	}
	if allowed.Load() != 2 || denied.Load() != 3 {
		t.Fatalf("hooks allowed=%d denied=%d, want 2 and 3", allowed.Load(), denied.Load())
	}
}

func TestCheck_ConcurrentNeverExceedsLimit(t *testing.T) {
	t.Parallel()

	const limit = 50
	l, _ := newTestLimiter(t, map[Category]Policy{CategoryAIRequest: {MaxEvents: limit, Window: time.Hour}})

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if ok, _ := l.Check(42, CategoryAIRequest); ok {
					admitted.Add(1)
				}
				if i%7 == 0 {
					l.Sweep()
				}
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != limit {
		t.Fatalf("admitted %d actions, want exactly %d", admitted.Load(), limit)
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()

	ts := []time.Time{epoch, epoch.Add(time.Second), epoch.Add(2 * time.Second)}

	tests := []struct {
		name   string
		cutoff time.Time
		want   int
	}{
		{name: "nothing expired", cutoff: epoch, want: 3},
		{name: "boundary kept", cutoff: epoch.Add(time.Second), want: 2},
		{name: "all expired", cutoff: epoch.Add(time.Hour), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]time.Time(nil), ts...)
			if got := prune(in, tt.cutoff); len(got) != tt.want {
				t.Fatalf("prune() kept %d, want %d", len(got), tt.want)
			}
		})
	}
}
