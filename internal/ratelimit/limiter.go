// Package ratelimit implements the per-user, per-category sliding-window log
// limiter that guards expensive bot commands.
//
// Every permitted action is recorded as a timestamp. A check prunes the
// timestamps that fell out of the trailing window and admits the action only
// while fewer than MaxEvents remain. State is process-local and is lost on
// restart.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type recordKey struct {
	userID   int64
	category Category
}

// record holds the permitted events of one (user, category) pair in
// chronological order. A record removed from the map is marked dead so that a
// caller still holding the pointer goes back to the map.
type record struct {
	mu         sync.Mutex
	timestamps []time.Time
	dead       bool
}

// Limiter is safe for concurrent use. Mutation is serialized per
// (user, category) key; different keys never block each other beyond the
// short map lookup.
type Limiter struct {
	clock    clockwork.Clock
	policies map[Category]Policy

	mu      sync.RWMutex
	records map[recordKey]*record

	onAllowed func(userID int64, category Category)
	onDenied  func(userID int64, category Category)
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock, used by tests to drive time.
func WithClock(c clockwork.Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

// WithOnAllowed sets a callback invoked after every admitted action.
func WithOnAllowed(fn func(userID int64, category Category)) Option {
	return func(l *Limiter) {
		l.onAllowed = fn
	}
}

// WithOnDenied sets a callback invoked after every rejected action.
func WithOnDenied(fn func(userID int64, category Category)) Option {
	return func(l *Limiter) {
		l.onDenied = fn
	}
}

// New builds a limiter for the given policies. It returns ErrInvalidPolicy if
// no policy is given or any policy has a non-positive value.
func New(policies map[Category]Policy, opts ...Option) (*Limiter, error) {
	if len(policies) == 0 {
		return nil, fmt.Errorf("%w: at least one category policy is required", ErrInvalidPolicy)
	}

	copied := make(map[Category]Policy, len(policies))
	for c, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("category %s: %w", c, err)
		}
		copied[c] = p
	}

	l := &Limiter{
		clock:    clockwork.NewRealClock(),
		policies: copied,
		records:  make(map[recordKey]*record),
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Check decides whether userID may perform an action of the given category
// right now and records it if so. A rejection is reported as false with a nil
// error; only an unconfigured category is an error.
func (l *Limiter) Check(userID int64, category Category) (bool, error) {
	policy, ok := l.policies[category]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	now := l.clock.Now()
	r := l.acquire(recordKey{userID: userID, category: category})
	r.timestamps = prune(r.timestamps, now.Add(-policy.Window))
	allowed := len(r.timestamps) < policy.MaxEvents
	if allowed {
		r.timestamps = append(r.timestamps, now)
	}
	r.mu.Unlock()

	if allowed {
		if l.onAllowed != nil {
			l.onAllowed(userID, category)
		}
	} else if l.onDenied != nil {
		l.onDenied(userID, category)
	}
	return allowed, nil
}

// Remaining returns how many more actions userID may perform in the current
// window. It is never negative.
func (l *Limiter) Remaining(userID int64, category Category) (int, error) {
	policy, ok := l.policies[category]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	r := l.lookup(recordKey{userID: userID, category: category})
	if r == nil {
		return policy.MaxEvents, nil
	}
	r.timestamps = prune(r.timestamps, l.clock.Now().Add(-policy.Window))
	count := len(r.timestamps)
	r.mu.Unlock()

	return max(policy.MaxEvents-count, 0), nil
}

// RetryAfter returns how long userID has to wait until the next action of the
// category would be admitted. It is zero while quota remains.
func (l *Limiter) RetryAfter(userID int64, category Category) (time.Duration, error) {
	policy, ok := l.policies[category]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	r := l.lookup(recordKey{userID: userID, category: category})
	if r == nil {
		return 0, nil
	}
	defer r.mu.Unlock()

	now := l.clock.Now()
	r.timestamps = prune(r.timestamps, now.Add(-policy.Window))
	if len(r.timestamps) < policy.MaxEvents {
		return 0, nil
	}
	// The slot frees once the oldest event is strictly older than the window.
	wait := r.timestamps[0].Add(policy.Window).Sub(now) + time.Nanosecond
	return max(wait, 0), nil
}

// Reset clears the record of one (user, category) pair.
func (l *Limiter) Reset(userID int64, category Category) error {
	if _, ok := l.policies[category]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	k := recordKey{userID: userID, category: category}
	l.mu.Lock()
	r := l.records[k]
	delete(l.records, k)
	l.mu.Unlock()

	if r != nil {
		r.mu.Lock()
		r.kill()
		r.mu.Unlock()
	}
	return nil
}

// ResetUser clears every category for one user.
func (l *Limiter) ResetUser(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, r := range l.records {
		if k.userID != userID {
			continue
		}
		r.mu.Lock()
		r.kill()
		r.mu.Unlock()
		delete(l.records, k)
	}
}

// ClearAll drops every record for every user and category.
func (l *Limiter) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range l.records {
		r.mu.Lock()
		r.kill()
		r.mu.Unlock()
	}
	l.records = make(map[recordKey]*record)
}

// Sweep prunes every record and removes the ones left empty. It returns the
// number of records removed.
func (l *Limiter) Sweep() int {
	now := l.clock.Now()
	removed := 0

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, r := range l.records {
		policy := l.policies[k.category]
		r.mu.Lock()
		r.timestamps = prune(r.timestamps, now.Add(-policy.Window))
		if len(r.timestamps) == 0 {
			r.kill()
			delete(l.records, k)
			removed++
		}
		r.mu.Unlock()
	}
	return removed
}

// Len returns the number of live records.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Policies returns a copy of the configured policies.
func (l *Limiter) Policies() map[Category]Policy {
	out := make(map[Category]Policy, len(l.policies))
	for c, p := range l.policies {
		out[c] = p
	}
	return out
}

// Policy returns the policy of one category.
func (l *Limiter) Policy(category Category) (Policy, error) {
	p, ok := l.policies[category]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return p, nil
}

// acquire returns the live record for k, creating it if needed, with its
// mutex held.
func (l *Limiter) acquire(k recordKey) *record {
	for {
		l.mu.RLock()
		r, ok := l.records[k]
		l.mu.RUnlock()

		if !ok {
			l.mu.Lock()
			r, ok = l.records[k]
			if !ok {
				r = &record{}
				l.records[k] = r
			}
			l.mu.Unlock()
		}

		r.mu.Lock()
		if !r.dead {
			return r
		}
		r.mu.Unlock()
	}
}

// lookup returns the live record for k with its mutex held, or nil if there
// is none.
func (l *Limiter) lookup(k recordKey) *record {
	for {
		l.mu.RLock()
		r, ok := l.records[k]
		l.mu.RUnlock()
		if !ok {
			return nil
		}

		r.mu.Lock()
		if !r.dead {
			return r
		}
		r.mu.Unlock()
	}
}

func (r *record) kill() {
	r.dead = true
	r.timestamps = nil
}

// prune drops the leading timestamps older than cutoff. Timestamps are in
// chronological order, so it stops at the first one still inside the window.
// The window is closed at its old end: a timestamp equal to cutoff, exactly
// one window old, is kept and still counts.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	n := copy(ts, ts[i:])
	return ts[:n]
}
