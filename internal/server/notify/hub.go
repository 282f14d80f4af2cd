// Package notify implements best-effort change fan-out to connected devices.
// The hub tracks subscribers per owner and pushes ChangeSummary messages
// over buffered channels. Delivery is at-most-once per call and never
// blocks or fails the sync path: a device that misses a push discovers the
// changes on its next pull via cursor comparison.
package notify

import (
	"context"
	"sync"

	"github.com/antonkovalev/storysync/internal/logging"
	"github.com/antonkovalev/storysync/internal/server/models"
)

const subscriberBuffer = 16

// Subscription is one device's live change feed.
type Subscription struct {
	OwnerID  string
	DeviceID string

	// C receives summaries until Unsubscribe; messages are dropped when
	// the buffer is full.
	C chan models.ChangeSummary
}

// Hub fans change summaries out to subscribed devices of the same owner.
type Hub struct {
	mu     sync.RWMutex
	owners map[string]map[*Subscription]struct{}
	closed bool

	logger logging.Logger
}

func NewHub(l logging.Logger) *Hub {
	return &Hub{
		owners: make(map[string]map[*Subscription]struct{}),
		logger: l.With("module", "notify_hub"),
	}
}

// Subscribe registers a device for pushes. Returns nil after Close.
func (h *Hub) Subscribe(ownerID, deviceID string) *Subscription {
	sub := &Subscription{
		OwnerID:  ownerID,
		DeviceID: deviceID,
		C:        make(chan models.ChangeSummary, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	set, ok := h.owners[ownerID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.owners[ownerID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.owners[sub.OwnerID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.owners, sub.OwnerID)
	}
	close(sub.C)
}

// Notify pushes the summary to every subscriber of ownerID except the
// device that produced the changes. Non-blocking: a full subscriber buffer
// drops the message.
func (h *Hub) Notify(ownerID, excludingDeviceID string, summary models.ChangeSummary) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for sub := range h.owners[ownerID] {
		if sub.DeviceID == excludingDeviceID {
			continue
		}
		select {
		case sub.C <- summary:
		default:
			h.logger.Warn(context.Background(), "subscriber buffer full, dropping notification",
				"owner_id", ownerID, "device_id", sub.DeviceID)
		}
	}
}

// Close drops all subscriptions and closes their channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for owner, set := range h.owners {
		for sub := range set {
			close(sub.C)
		}
		delete(h.owners, owner)
	}
}
