// Package events implements the Event Bus (D): a room-based
// publish/subscribe façade over websocket connections, grounded on
// websocket_events.py's join_room/emit idiom and reusing the
// websocket.Upgrader setup the llm-service http server already uses.
package events

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// subscriberBuffer bounds how many undelivered events a slow
// connection can accumulate; further events for it are dropped rather
// than let it block publishers (spec §4.2: "publishing is non-blocking").
const subscriberBuffer = 32

// Event is one message pushed to a room. Name identifies the event
// type (translation_started, material_updated, ...); Payload is
// marshaled to JSON as-is.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type subscriber struct {
	id    string
	conn  *websocket.Conn
	outCh chan Event
	done  chan struct{}
}

// Hub tracks room membership and fans events out to every subscriber
// of a room without blocking the publisher.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*subscriber
	upgrader websocket.Upgrader
}

// NewHub constructs an empty Hub. CheckOrigin is permissive, matching
// the llm-service server's websocket.Upgrader (CORS is handled at the
// gin middleware layer, not here).
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[string]*subscriber),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ClientRoom names the room that receives material lifecycle events
// for clientID (spec §4.2).
func ClientRoom(clientID string) string { return "client:" + clientID }

// MaterialRoom names the room that receives LLM-stage events for
// materialID (spec §4.2).
func MaterialRoom(materialID string) string { return "material:" + materialID }

// Serve upgrades r into a websocket connection and joins it to rooms,
// pumping events to it until the connection closes. It blocks until
// then.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, connID string, rooms ...string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := &subscriber{
		id:    connID,
		conn:  conn,
		outCh: make(chan Event, subscriberBuffer),
		done:  make(chan struct{}),
	}

	h.join(sub, rooms...)
	go h.writePump(sub, rooms)
	h.readPump(sub, rooms)
	return nil
}

func (h *Hub) join(sub *subscriber, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[string]*subscriber)
		}
		h.rooms[room][sub.id] = sub
	}
}

func (h *Hub) leave(sub *subscriber, rooms []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range rooms {
		delete(h.rooms[room], sub.id)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
}

// readPump discards inbound frames (clients don't send data today)
// and detects disconnects, closing done so writePump stops.
func (h *Hub) readPump(sub *subscriber, rooms []string) {
	defer func() {
		close(sub.done)
		h.leave(sub, rooms)
		sub.conn.Close()
	}()
	sub.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber, rooms []string) {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sub.done:
			return
		case ev := <-sub.outCh:
			sub.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := sub.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish fans ev out to every subscriber of room. A subscriber whose
// buffer is full misses this event (it stays in the room) rather than
// being allowed to stall the publisher (spec §4.2).
func (h *Hub) Publish(room string, ev Event) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.rooms[room]))
	for _, s := range h.rooms[room] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.outCh <- ev:
		default:
			log.Printf("events: dropping event for slow subscriber %s in room %s", s.id, room)
		}
	}
}

// PublishJSON is a convenience for handlers that already have a
// payload as raw JSON bytes rather than a Go value.
func (h *Hub) PublishJSON(room, name string, raw json.RawMessage) {
	h.Publish(room, Event{Name: name, Payload: raw})
}

// --- typed event constructors, mirroring websocket_events.py's emit_* helpers ---

// TranslationStarted builds a translation_started event (spec §4.2).
func TranslationStarted(materialID, message string) Event {
	return Event{Name: "translation_started", Payload: map[string]interface{}{
		"material_id": materialID,
		"message":     message,
	}}
}

// MaterialUpdated builds a material_updated event. Optional fields
// are omitted from the payload map when empty, mirroring
// emit_material_updated's conditional kwargs.
func MaterialUpdated(materialID, status, processingStep string, progress int, translatedPath, translationInfo, filePath string) Event {
	payload := map[string]interface{}{
		"material_id":     materialID,
		"status":          status,
		"processing_step": processingStep,
		"progress":        progress,
	}
	if translatedPath != "" {
		payload["translated_path"] = translatedPath
	}
	if translationInfo != "" {
		payload["translation_info"] = translationInfo
	}
	if filePath != "" {
		payload["file_path"] = filePath
	}
	return Event{Name: "material_updated", Payload: payload}
}

// MaterialError builds a material_error event.
func MaterialError(materialID, errMsg string) Event {
	return Event{Name: "material_error", Payload: map[string]interface{}{
		"material_id": materialID,
		"error":       errMsg,
	}}
}

// TranslationCompleted builds a translation_completed event.
func TranslationCompleted(successCount, failedCount int, message string) Event {
	return Event{Name: "translation_completed", Payload: map[string]interface{}{
		"success_count": successCount,
		"failed_count":  failedCount,
		"message":       message,
	}}
}

// LLMStarted builds an llm_started event.
func LLMStarted(materialID string, progress int) Event {
	return Event{Name: "llm_started", Payload: map[string]interface{}{
		"material_id": materialID,
		"progress":    progress,
	}}
}

// LLMCompleted builds an llm_completed event.
func LLMCompleted(materialID string, progress int, translations interface{}) Event {
	return Event{Name: "llm_completed", Payload: map[string]interface{}{
		"material_id":  materialID,
		"progress":     progress,
		"translations": translations,
	}}
}

// LLMError builds an llm_error event.
func LLMError(materialID, errMsg string) Event {
	return Event{Name: "llm_error", Payload: map[string]interface{}{
		"material_id": materialID,
		"error":       errMsg,
	}}
}
