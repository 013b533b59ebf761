package utilities

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Now returns the clock's current time normalized to UTC. Every persisted
// timestamp goes through here so that stored values compare consistently.
func Now(c clockwork.Clock) time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}
