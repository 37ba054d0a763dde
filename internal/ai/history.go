package ai

import "sync"

// Conversations keeps the most recent turns per user in memory. It is safe
// for concurrent use and forgets everything on restart.
type Conversations struct {
	maxTurns int

	mu    sync.Mutex
	turns map[int64][]Turn
}

// NewConversations keeps at most maxTurns turns per user. A value of zero
// disables memory.
func NewConversations(maxTurns int) *Conversations {
	return &Conversations{
		maxTurns: max(maxTurns, 0),
		turns:    make(map[int64][]Turn),
	}
}

// Get returns a copy of the user's turns, oldest first.
func (c *Conversations) Get(userID int64) []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Turn(nil), c.turns[userID]...)
}

// Append records a prompt and its reply and trims the oldest turns.
func (c *Conversations) Append(userID int64, prompt, reply string) {
	if c.maxTurns == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t := append(c.turns[userID],
		Turn{Role: RoleUser, Text: prompt},
		Turn{Role: RoleAssistant, Text: reply},
	)
	if over := len(t) - c.maxTurns; over > 0 {
		t = append([]Turn(nil), t[over:]...)
	}
	c.turns[userID] = t
}

// Clear forgets one user's conversation.
func (c *Conversations) Clear(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.turns, userID)
}

// Len returns the number of users with remembered turns.
func (c *Conversations) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.turns)
}
