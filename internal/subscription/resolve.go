package subscription

import (
	"sort"
	"time"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/subscription/entity"
)

// Resolution is the outcome of resolving a user's subscription history.
// State is active, expired or none. Reference is the deciding row, Stale the
// pending rows created strictly before it, and Pending the newest pending
// row that is not stale.
type Resolution struct {
	State     string
	Reference *entity.UserSubscription
	Stale     []*entity.UserSubscription
	Pending   *entity.UserSubscription
}

// Resolve computes the effective subscription state from a user's history
// without touching storage. The newest reviewed row (active, expired or
// rejected with a review stamp) decides; failing that, the newest active
// row does. Input order does not matter.
func Resolve(history []*entity.UserSubscription, now time.Time) Resolution {
	subs := make([]*entity.UserSubscription, len(history))
	copy(subs, history)
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].ID > subs[j].ID
		}
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})

	var ref *entity.UserSubscription
	for _, s := range subs {
		if s.Reviewed() {
			ref = s
			break
		}
	}
	if ref == nil {
		for _, s := range subs {
			if s.State == entity.StateActive {
				ref = s
				break
			}
		}
	}

	res := Resolution{State: entity.StateNone, Reference: ref}
	if ref != nil && ref.State == entity.StateActive {
		if ref.ExpiredAt(now) {
			res.State = entity.StateExpired
		} else {
			res.State = entity.StateActive
		}
	}
	for _, s := range subs {
		if s.State != entity.StatePending {
			continue
		}
		if ref != nil && s.CreatedAt.Before(ref.CreatedAt) {
			res.Stale = append(res.Stale, s)
			continue
		}
		if res.Pending == nil {
			res.Pending = s
		}
	}
	return res
}
