package websocket

import (
	"context"
	"sync"

	"photoreviver/internal/dto"
	"photoreviver/internal/logger"
	"photoreviver/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// eventBuffer bounds how many progress events may wait for the hub loop.
const eventBuffer = 256

// Conn is the part of a websocket connection the hub needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// HubService fans progress events out to websocket subscribers.
type HubService struct {
	clients   map[Conn]string // conn -> job filter, empty receives every job
	broadcast chan dto.ProgressEvent
	mutex     sync.RWMutex
	logger    *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:   make(map[Conn]string),
		broadcast: make(chan dto.ProgressEvent, eventBuffer),
		logger:    logger,
	}
}

// Serve runs the hub loop until ctx is done. It implements suture.Service.
func (h *HubService) Serve(ctx context.Context) error {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *HubService) String() string { return "progress-hub" }

func (h *HubService) deliver(event dto.ProgressEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Error encoding progress event: %v", err)
		return
	}

	h.mutex.RLock()
	var failed []Conn
	for conn, job := range h.clients {
		if job != "" && job != event.Job {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending progress event: %v", err)
			failed = append(failed, conn)
		}
	}
	h.mutex.RUnlock()

	for _, conn := range failed {
		h.remove(conn)
	}
}

func (h *HubService) remove(conn Conn) {
	h.mutex.Lock()
	_, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mutex.Unlock()

	if ok {
		metrics.WSConnections.Set(float64(count))
		h.logger.Info("Progress subscriber disconnected. Total: %d", count)
	}
}

func (h *HubService) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	metrics.WSConnections.Set(0)
}

// Register subscribes conn to events of job, or to all events when job is empty.
func (h *HubService) Register(conn Conn, job string) {
	h.mutex.Lock()
	h.clients[conn] = job
	count := len(h.clients)
	h.mutex.Unlock()

	metrics.WSConnections.Set(float64(count))
	h.logger.Info("Progress subscriber connected (job=%q). Total: %d", job, count)
}

// Unregister removes and closes conn. Unknown connections are ignored.
func (h *HubService) Unregister(conn Conn) {
	h.remove(conn)
}

// Broadcast queues event for delivery. It never blocks; events are dropped
// when the hub is saturated.
func (h *HubService) Broadcast(event dto.ProgressEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warning("Progress queue full, dropping %s event for job %s", event.Stage, event.Job)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
