package app

import "sync"

// PointsUpdate is pushed to subscribers whenever a user's total changes.
type PointsUpdate struct {
	UserID string `json:"userId"`
	Total  int    `json:"total"`
}

// PointsFeed fans point-total changes out to per-user subscribers.
// Its Publish method is the ledger's points-change listener.
type PointsFeed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan PointsUpdate]struct{}
}

func NewPointsFeed() *PointsFeed {
	return &PointsFeed{subscribers: make(map[string]map[chan PointsUpdate]struct{})}
}

// Subscribe returns a channel of updates for userID.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *PointsFeed) Subscribe(userID string) (<-chan PointsUpdate, func()) {
	ch := make(chan PointsUpdate, 4)

	f.mu.Lock()
	subs, ok := f.subscribers[userID]
	if !ok {
		subs = make(map[chan PointsUpdate]struct{})
		f.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subscribers[userID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.subscribers, userID)
		}
	}
	return ch, cancel
}

// Publish delivers the new total to every subscriber of userID.
func (f *PointsFeed) Publish(userID string, total int) {
	update := PointsUpdate{UserID: userID, Total: total}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[userID] {
		select {
		case ch <- update:
		default:
			// Only the latest total matters; drop the stale one for slow readers.
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
}
