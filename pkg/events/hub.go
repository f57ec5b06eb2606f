package events

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// subscriberBuffer is the queue length of each subscription.
const subscriberBuffer = 16

type subscriber struct {
	names   map[string]struct{}
	dropped int
}

func (s *subscriber) wants(name string) bool {
	if s.names == nil {
		return true
	}
	_, ok := s.names[name]
	return ok
}

// EventHub fans capture events out to subscribers. Publishing never blocks
// the capture: a subscriber whose queue is full loses the event, except for
// capture.done, which evicts the oldest queued event instead. A nil hub
// drops everything published to it.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan Event]*subscriber
}

func NewEventHub() *EventHub { return &EventHub{subs: make(map[chan Event]*subscriber)} }

// Subscribe returns a channel receiving the named events, or every event
// when no name is given.
func (h *EventHub) Subscribe(names ...string) chan Event {
	sub := &subscriber{}
	if len(names) > 0 {
		sub.names = make(map[string]struct{}, len(names))
		for _, n := range names {
			sub.names[n] = struct{}{}
		}
	}

	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = sub
	h.mu.Unlock()
	return ch
}

// Unsubscribe closes ch.
func (h *EventHub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[ch]
	if !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
	if sub.dropped > 0 {
		logrus.WithField("dropped", sub.dropped).Debug("slow event subscriber lost events")
	}
}

// Dropped returns how many events ch has lost so far.
func (h *EventHub) Dropped(ch chan Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[ch]; ok {
		return sub.dropped
	}
	return 0
}

func (h *EventHub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("event", name).Warn("failed to encode event")
		return
	}
	msg := Event{Name: name, Data: b}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, sub := range h.subs {
		if !sub.wants(name) {
			continue
		}
		select {
		case ch <- msg:
			continue
		default:
		}
		if name != CaptureDone {
			sub.dropped++
			continue
		}
		// Only the hub sends on ch, so evicting one event frees a slot.
		select {
		case <-ch:
			sub.dropped++
		default:
		}
		select {
		case ch <- msg:
		default:
			sub.dropped++
		}
	}
}
