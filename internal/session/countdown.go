package session

import "time"

// ChoiceWindow is the fixed window for picking the next goal after a
// completion before the session auto-picks.
const ChoiceWindow = 120 * time.Second

// countdowns holds the armed deadlines. Each is a simple deadline check
// evaluated on every clock tick; a countdown is cancelled by clearing its
// deadline when the owning state is exited.
type countdowns struct {
	choice *time.Time // armed at AwaitingBreakChoice entry
	brk    *time.Time // armed at BreakActive entry
}

func (c *countdowns) armChoice(now time.Time) {
	deadline := now.Add(ChoiceWindow)
	c.choice = &deadline
}

func (c *countdowns) armBreak(now time.Time, duration time.Duration) {
	deadline := now.Add(duration)
	c.brk = &deadline
}

func (c *countdowns) cancelChoice() { c.choice = nil }
func (c *countdowns) cancelBreak()  { c.brk = nil }
func (c *countdowns) cancelAll()    { c.choice, c.brk = nil, nil }

// choiceExpired reports whether the choice countdown has reached zero.
func (c *countdowns) choiceExpired(now time.Time) bool {
	return c.choice != nil && !now.Before(*c.choice)
}

// breakExpired reports whether the break countdown has reached zero.
func (c *countdowns) breakExpired(now time.Time) bool {
	return c.brk != nil && !now.Before(*c.brk)
}

// remaining returns the time left until a deadline, floored at zero.
func remaining(now time.Time, deadline *time.Time) *time.Duration {
	if deadline == nil {
		return nil
	}
	left := deadline.Sub(now)
	if left < 0 {
		left = 0
	}
	return &left
}
