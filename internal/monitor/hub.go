// Package monitor ties live subscribers to per-job polling. The hub owns
// one room per watched job: the set of subscriber connections plus the
// cancel handle of that job's poller. A poller runs iff its room has at
// least one subscriber.
package monitor

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/vikramsd/fluxgen/internal/generation"
	"github.com/vikramsd/fluxgen/internal/models"
	"github.com/vikramsd/fluxgen/internal/provider"
	"github.com/vikramsd/fluxgen/internal/store"
)

// Hub is the connection broker. Each room carries its own lock, so
// broadcast and membership changes for one job are mutually exclusive while
// rooms for different jobs never contend. The hub lock guards only the room
// map and is never held across a send.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room

	service  *generation.Service
	store    *store.Store
	provider provider.Provider
	interval time.Duration
}

type room struct {
	mu      sync.Mutex
	clients map[*Client]bool
	cancel  context.CancelFunc
	kick    chan struct{} // triggers an out-of-cadence polling pass
	dead    bool          // room removed from the map, do not use
}

// NewHub creates a connection broker. The provider is expected to carry
// retry behavior; interval is the polling cadence.
func NewHub(service *generation.Service, st *store.Store, p provider.Provider, interval time.Duration) *Hub {
	return &Hub{
		rooms:    make(map[string]*room),
		service:  service,
		store:    st,
		provider: p,
		interval: interval,
	}
}

// Subscribe registers a client for a job's updates. The first subscriber of
// a job starts its poller; later subscribers trigger one immediate pass so
// they see current state without waiting out the cadence.
func (h *Hub) Subscribe(jobID string, client *Client) {
	for {
		h.mu.Lock()
		rm, ok := h.rooms[jobID]
		if !ok {
			rm = &room{
				clients: make(map[*Client]bool),
				kick:    make(chan struct{}, 1),
			}
			h.rooms[jobID] = rm
		}
		h.mu.Unlock()

		rm.mu.Lock()
		if rm.dead {
			// Lost a race with the room being reaped; look it up again.
			rm.mu.Unlock()
			continue
		}
		rm.clients[client] = true
		total := len(rm.clients)
		if rm.cancel == nil {
			ctx, cancel := context.WithCancel(context.Background())
			rm.cancel = cancel
			poller := &Poller{hub: h, jobID: jobID}
			go poller.run(ctx, rm.kick)
			log.Printf("Started monitoring job %s", jobID)
		} else {
			select {
			case rm.kick <- struct{}{}:
			default:
			}
		}
		rm.mu.Unlock()

		log.Printf("Subscriber attached to job %s. Total connections: %d", jobID, total)
		return
	}
}

// Unsubscribe removes a client. When the last subscriber of a job detaches,
// the job's poller is cancelled and the room is dropped.
func (h *Hub) Unsubscribe(jobID string, client *Client) {
	h.mu.Lock()
	rm, ok := h.rooms[jobID]
	if !ok {
		h.mu.Unlock()
		return
	}
	rm.mu.Lock()
	removed := rm.clients[client]
	if removed {
		delete(rm.clients, client)
		// Detach is the only place the send channel closes. It runs after
		// the client's read loop has exited, so nothing can still be
		// sending on it.
		close(client.send)
	}
	remaining := len(rm.clients)
	if remaining == 0 {
		h.reapLocked(jobID, rm)
	}
	rm.mu.Unlock()
	h.mu.Unlock()

	if removed {
		log.Printf("Subscriber detached from job %s. Total connections: %d", jobID, remaining)
	}
}

// Broadcast delivers one event to every subscriber of a job. A client whose
// send buffer cannot accept the event is treated as gone: it is dropped
// from the room and its connection is closed, which makes its pumps exit
// and detach through the normal path. Its send channel stays open here
// because the client's read loop may still be replying to keepalives on it.
func (h *Hub) Broadcast(jobID string, event *models.PredictionUpdate) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal update for job %s: %v", jobID, err)
		return
	}

	h.mu.Lock()
	rm, ok := h.rooms[jobID]
	h.mu.Unlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	if rm.dead {
		rm.mu.Unlock()
		return
	}
	for client := range rm.clients {
		select {
		case client.send <- payload:
		default:
			log.Printf("Subscriber for job %s is not receiving, pruning", jobID)
			delete(rm.clients, client)
			if client.conn != nil {
				client.conn.Close()
			}
		}
	}
	empty := len(rm.clients) == 0
	rm.mu.Unlock()

	if empty {
		h.reapIfEmpty(jobID, rm)
	}
}

// SubscriberCount reports the number of live subscribers for a job.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.Lock()
	rm, ok := h.rooms[jobID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.clients)
}

// PollerRunning reports whether a poller is live for a job.
func (h *Hub) PollerRunning(jobID string) bool {
	h.mu.Lock()
	rm, ok := h.rooms[jobID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.cancel != nil
}

// reapLocked cancels the room's poller and removes it from the map. Both
// the hub lock and the room lock must be held.
func (h *Hub) reapLocked(jobID string, rm *room) {
	if rm.cancel != nil {
		rm.cancel()
		rm.cancel = nil
		log.Printf("Stopped monitoring job %s - no more connections", jobID)
	}
	rm.dead = true
	delete(h.rooms, jobID)
}

// reapIfEmpty reaps a room that drained outside Unsubscribe (broadcast
// pruning). Re-checked under both locks: a concurrent Subscribe may have
// repopulated the room, in which case it is left alone.
func (h *Hub) reapIfEmpty(jobID string, rm *room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[jobID] != rm {
		return
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.dead || len(rm.clients) > 0 {
		return
	}
	h.reapLocked(jobID, rm)
}
