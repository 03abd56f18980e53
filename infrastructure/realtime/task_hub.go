package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"autouploader/domain/dto"

	"github.com/gin-gonic/gin"
)

// TaskHub streams terminal task events to status clients over SSE.
// It also satisfies repository.ITaskNotifier so the scheduler can feed it.
type TaskHub struct {
	mu   sync.RWMutex
	subs map[chan dto.TaskEvent]struct{}
}

func NewTaskHub() *TaskHub {
	return &TaskHub{subs: make(map[chan dto.TaskEvent]struct{})}
}

// Serve holds the connection open and writes one SSE frame per event.
func (h *TaskHub) Serve(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering
	c.Status(http.StatusOK)

	ch := make(chan dto.TaskEvent, 8)
	h.subscribe(ch)
	defer h.unsubscribe(ch)

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case evt := <-ch:
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			_, _ = c.Writer.Write([]byte("event: " + evt.Type + "\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// Subscribers reports how many streams are open.
func (h *TaskHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Notify fans the event out without blocking; slow readers miss events.
func (h *TaskHub) Notify(_ context.Context, event dto.TaskEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (h *TaskHub) subscribe(ch chan dto.TaskEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = struct{}{}
}

func (h *TaskHub) unsubscribe(ch chan dto.TaskEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, ch)
}
