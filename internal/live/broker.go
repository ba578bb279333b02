package live

import (
	"sync"
)

type subKey struct {
	stream   string
	surveyID string
}

// Broker is the in-process change-notification fan-out. Subscriptions are
// keyed by (stream, survey) — the equivalent of "rows of table T where
// survey_id = X". Events carry no payload contract: subscribers re-read
// current state on wake, so a dropped event only delays convergence until
// the next event or reconnect.
type Broker struct {
	mu   sync.Mutex
	subs map[subKey]map[chan any]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[subKey]map[chan any]struct{})}
}

// Subscribe registers an observer. The returned cancel func must be called
// when the observer goes away; it closes the channel.
func (b *Broker) Subscribe(stream, surveyID string) (<-chan any, func()) {
	key := subKey{stream: stream, surveyID: surveyID}
	ch := make(chan any, 8)

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[chan any]struct{})
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[key], ch)
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish wakes every subscriber of (stream, surveyID). Sends never block:
// a subscriber with a full buffer misses the wake-up and catches up on the
// next one.
func (b *Broker) Publish(stream, surveyID string, payload any) {
	key := subKey{stream: stream, surveyID: surveyID}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[key] {
		select {
		case ch <- payload:
		default:
		}
	}
}

// SubscriberCount reports how many observers are registered for a key.
func (b *Broker) SubscriberCount(stream, surveyID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[subKey{stream: stream, surveyID: surveyID}])
}
