package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Parthmh361/pure-harvest/internal/events"
	"github.com/Parthmh361/pure-harvest/internal/models"
	apperrors "github.com/Parthmh361/pure-harvest/pkg/errors"
	"github.com/Parthmh361/pure-harvest/pkg/response"
)

// EventHandler ingests marketplace events over HTTP for services that do not
// publish to the broker themselves.
type EventHandler struct {
	sink events.Sink
}

// NewEventHandler constructs an EventHandler publishing to sink.
func NewEventHandler(sink events.Sink) (*EventHandler, error) {
	if sink == nil {
		return nil, errors.New("event handler: sink is required")
	}
	return &EventHandler{sink: sink}, nil
}

type orderEventPayload struct {
	Event string        `json:"event" validate:"required,notblank"`
	Order *models.Order `json:"order" validate:"required"`
}

type productEventPayload struct {
	Event   string          `json:"event" validate:"required,notblank"`
	Product *models.Product `json:"product" validate:"required"`
}

// Ingest accepts a complete event envelope.
func (h *EventHandler) Ingest(c *gin.Context) {
	var event events.Event
	if !bindAndValidate(c, &event) {
		return
	}
	h.publish(c, event)
}

// Orders accepts an order lifecycle event such as "created" or "shipped".
func (h *EventHandler) Orders(c *gin.Context) {
	var payload orderEventPayload
	if !bindAndValidate(c, &payload) {
		return
	}
	h.publish(c, events.Event{
		Type:  events.OrderPrefix + strings.ToLower(strings.TrimSpace(payload.Event)),
		Order: payload.Order,
	})
}

// Products accepts a product event such as "created" or "low_stock".
func (h *EventHandler) Products(c *gin.Context) {
	var payload productEventPayload
	if !bindAndValidate(c, &payload) {
		return
	}
	h.publish(c, events.Event{
		Type:    events.ProductPrefix + strings.ToLower(strings.TrimSpace(payload.Event)),
		Product: payload.Product,
	})
}

func (h *EventHandler) publish(c *gin.Context, event events.Event) {
	event.Type = strings.ToLower(strings.TrimSpace(event.Type))
	if err := h.sink.Publish(requestContext(c), event); err != nil {
		if errors.Is(err, events.ErrUnsupportedEvent) || errors.Is(err, events.ErrIncompleteEvent) {
			response.Error(c, apperrors.NewBadRequest(err.Error()))
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"type": event.Type, "key": event.Key()})
}
