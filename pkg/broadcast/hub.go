// Package broadcast fans engine events out to connected consumers.
//
// Every connected consumer is part of the global audience. Consumers can
// additionally join per-stop groups to receive the slice of each arrivals
// batch that belongs to that stop. Delivery is best effort: each consumer has
// a bounded queue and a full queue drops the event for that consumer only.
package broadcast

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transitlive/pkg/ctdf"
)

const DefaultBufferSize = 64

type Hub struct {
	mu sync.RWMutex

	bufferSize int

	consumers map[string]*Subscription
	groups    map[string]map[string]struct{}
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Hub{
		bufferSize: bufferSize,
		consumers:  map[string]*Subscription{},
		groups:     map[string]map[string]struct{}{},
	}
}

func GroupName(stopID string) string {
	return fmt.Sprintf("stop_%s", stopID)
}

// Connect registers a consumer in the global audience. When eventTypes is
// non-empty the consumer only receives those event types. Connecting an
// already connected consumer returns its existing subscription.
func (h *Hub) Connect(consumerID string, eventTypes ...ctdf.EventType) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.consumers[consumerID]; ok {
		return existing
	}

	subscription := newSubscription(consumerID, h.bufferSize, eventTypes)
	h.consumers[consumerID] = subscription

	log.Debug().Str("consumer", consumerID).Int("consumers", len(h.consumers)).Msg("Consumer connected")

	return subscription
}

// Subscribe adds the consumer to the stop group. Unknown consumers are ignored.
func (h *Hub) Subscribe(consumerID string, stopID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscription, ok := h.consumers[consumerID]
	if !ok {
		return false
	}

	members, ok := h.groups[stopID]
	if !ok {
		members = map[string]struct{}{}
		h.groups[stopID] = members
	}
	members[consumerID] = struct{}{}
	subscription.stops[stopID] = struct{}{}

	log.Debug().Str("consumer", consumerID).Str("group", GroupName(stopID)).Msg("Consumer joined group")

	return true
}

// Unsubscribe removes the consumer from the stop group. Unknown pairs are a no-op.
func (h *Hub) Unsubscribe(consumerID string, stopID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveGroup(consumerID, stopID)
}

// Disconnect removes the consumer from every group and closes its channel. Unknown consumers are a no-op.
func (h *Hub) Disconnect(consumerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscription, ok := h.consumers[consumerID]
	if !ok {
		return
	}

	for stopID := range subscription.stops {
		h.leaveGroup(consumerID, stopID)
	}

	delete(h.consumers, consumerID)
	subscription.close()

	log.Debug().
		Str("consumer", consumerID).
		Int64("dropped", subscription.Dropped()).
		Int("consumers", len(h.consumers)).
		Msg("Consumer disconnected")
}

// Close disconnects every consumer
func (h *Hub) Close() {
	h.mu.Lock()
	consumerIDs := make([]string, 0, len(h.consumers))
	for consumerID := range h.consumers {
		consumerIDs = append(consumerIDs, consumerID)
	}
	h.mu.Unlock()

	for _, consumerID := range consumerIDs {
		h.Disconnect(consumerID)
	}
}

func (h *Hub) leaveGroup(consumerID string, stopID string) {
	members, ok := h.groups[stopID]
	if !ok {
		return
	}

	delete(members, consumerID)
	if len(members) == 0 {
		delete(h.groups, stopID)
	}

	if subscription, ok := h.consumers[consumerID]; ok {
		delete(subscription.stops, stopID)
	}
}

func (h *Hub) ConsumerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.consumers)
}

func (h *Hub) GroupMembers(stopID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]string, 0, len(h.groups[stopID]))
	for consumerID := range h.groups[stopID] {
		members = append(members, consumerID)
	}

	return members
}

// PublishArrivals delivers the full batch to the global audience and the per-stop slices to each stop group
func (h *Hub) PublishArrivals(timestamp time.Time, predictions []*ctdf.Prediction) {
	batchEvent := &ctdf.Event{
		Type:      ctdf.EventTypeArrivalUpdates,
		Timestamp: timestamp,
		Body:      predictions,
	}

	byStop := map[string][]*ctdf.Prediction{}
	for _, prediction := range predictions {
		byStop[prediction.StopRef] = append(byStop[prediction.StopRef], prediction)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, subscription := range h.consumers {
		subscription.offer(batchEvent)
	}

	for stopID, members := range h.groups {
		stopPredictions, ok := byStop[stopID]
		if !ok {
			continue
		}

		stopEvent := &ctdf.Event{
			Type:      ctdf.EventTypeStopArrivalUpdate,
			Timestamp: timestamp,
			Body: &ctdf.StopArrivalUpdateEvent{
				StopRef:     stopID,
				Predictions: stopPredictions,
			},
		}

		for consumerID := range members {
			h.consumers[consumerID].offer(stopEvent)
		}
	}
}

func (h *Hub) PublishServiceAlert(timestamp time.Time, action ctdf.ServiceAlertAction, serviceAlert *ctdf.ServiceAlert) {
	h.Publish(&ctdf.Event{
		Type:      ctdf.EventTypeServiceAlert,
		Timestamp: timestamp,
		Body: &ctdf.ServiceAlertEvent{
			Action:       action,
			ServiceAlert: serviceAlert,
		},
	})
}

// Publish delivers an event to the whole global audience
func (h *Hub) Publish(event *ctdf.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, subscription := range h.consumers {
		subscription.offer(event)
	}
}

// Send delivers an event to a single consumer
func (h *Hub) Send(consumerID string, event *ctdf.Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subscription, ok := h.consumers[consumerID]
	if !ok {
		return false
	}

	return subscription.offer(event)
}

// Subscription is a consumer's handle on the hub
type Subscription struct {
	ID string

	events chan *ctdf.Event
	filter map[ctdf.EventType]struct{}

	// guarded by the hub mutex
	stops  map[string]struct{}
	closed bool

	dropped atomic.Int64
}

func newSubscription(consumerID string, bufferSize int, eventTypes []ctdf.EventType) *Subscription {
	subscription := &Subscription{
		ID:     consumerID,
		events: make(chan *ctdf.Event, bufferSize),
		stops:  map[string]struct{}{},
	}

	if len(eventTypes) > 0 {
		subscription.filter = map[ctdf.EventType]struct{}{}
		for _, eventType := range eventTypes {
			subscription.filter[eventType] = struct{}{}
		}
	}

	return subscription
}

// Events is closed when the consumer is disconnected
func (s *Subscription) Events() <-chan *ctdf.Event {
	return s.events
}

func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Drain calls handler for every event until the subscription is disconnected
func (s *Subscription) Drain(handler func(*ctdf.Event)) {
	for event := range s.events {
		handler(event)
	}
}

func (s *Subscription) wants(eventType ctdf.EventType) bool {
	if s.filter == nil {
		return true
	}
	_, ok := s.filter[eventType]
	return ok
}

// offer must be called with the hub mutex held
func (s *Subscription) offer(event *ctdf.Event) bool {
	if s.closed || !s.wants(event.Type) {
		return false
	}

	select {
	case s.events <- event:
		return true
	default:
		dropped := s.dropped.Add(1)
		log.Warn().
			Str("consumer", s.ID).
			Str("event", string(event.Type)).
			Int64("dropped", dropped).
			Msg("Consumer queue full, dropping event")
		return false
	}
}

func (s *Subscription) close() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}
