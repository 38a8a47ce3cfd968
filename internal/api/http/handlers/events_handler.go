package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/events"
	"github.com/spec-kit/dispute-service/internal/service"
	apperrors "github.com/spec-kit/dispute-service/pkg/util/errorutil"
)

const heartbeatInterval = 20 * time.Second

// NoticeSource yields real-time notices for a dispute.
type NoticeSource interface {
	Subscribe(ctx context.Context, disputeID string) (<-chan events.Notice, error)
}

// EventsHandler streams dispute notices as server-sent events.
type EventsHandler struct {
	service *service.DisputeService
	source  NoticeSource
	logger  *zap.Logger
}

// NewEventsHandler constructs handler.
func NewEventsHandler(disputeService *service.DisputeService, source NoticeSource, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{service: disputeService, source: source, logger: logger}
}

// Stream GET /disputes/:id/events.
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	actor, err := actorFrom(c, "")
	if err != nil {
		return err
	}
	view, err := h.service.GetDispute(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	if h.source == nil {
		return apperrors.NewDomainError("STREAM_UNAVAILABLE", "event stream not configured", fiber.StatusServiceUnavailable, nil)
	}

	// the stream outlives the handler, so it cannot borrow the request context
	ctx, cancel := context.WithCancel(context.Background())
	notices, err := h.source.Subscribe(ctx, view.Dispute.ID)
	if err != nil {
		cancel()
		h.logger.Warn("event stream subscribe failed", zap.String("dispute_id", view.Dispute.ID), zap.Error(err))
		return apperrors.NewDomainError("STREAM_UNAVAILABLE", "event stream unavailable", fiber.StatusServiceUnavailable, nil)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	snapshot := events.Notice{
		DisputeID: view.Dispute.ID,
		Status:    view.Dispute.Status,
		Version:   view.Dispute.Version,
	}
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		if err := writeEvent(w, "snapshot", snapshot); err != nil {
			return
		}
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case notice, ok := <-notices:
				if !ok {
					return
				}
				if err := writeEvent(w, string(notice.EventType), notice); err != nil {
					return
				}
			case <-ticker.C:
				if err := writeEvent(w, "ping", time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

// writeEvent emits one SSE frame and flushes; a flush error means the client left.
func writeEvent(w *bufio.Writer, event string, data any) error {
	payload := marshalPayload(data)
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(payload, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := w.WriteString("\n"); err != nil {
		return err
	}
	return w.Flush()
}

func marshalPayload(data any) string {
	switch payload := data.(type) {
	case string:
		return payload
	default:
		bytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Sprintf("%v", data)
		}
		return string(bytes)
	}
}
