package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Parthmh361/pure-harvest/internal/models"
	"github.com/Parthmh361/pure-harvest/internal/services"
	apperrors "github.com/Parthmh361/pure-harvest/pkg/errors"
	"github.com/Parthmh361/pure-harvest/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for notifications.
type NotificationHandler struct {
	service *services.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, errors.New("notification handler: service is required")
	}
	return &NotificationHandler{service: service}, nil
}

type markReadPayload struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,notblank"`
}

type channelsPayload struct {
	InApp bool `json:"in_app"`
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

type createNotificationPayload struct {
	RecipientID string           `json:"recipient_id" validate:"required,notblank"`
	Type        string           `json:"type" validate:"omitempty,max=64,notification_type"`
	Title       string           `json:"title" validate:"omitempty,max=200"`
	Message     string           `json:"message" validate:"required,notblank,max=2000"`
	Data        map[string]any   `json:"data"`
	Channels    *channelsPayload `json:"channels"`
	ActionURL   string           `json:"action_url" validate:"omitempty,max=500,action_url"`
}

type broadcastPayload struct {
	Message string   `json:"message" validate:"required,notblank,max=2000"`
	Type    string   `json:"type" validate:"omitempty,max=64,notification_type"`
	UserIDs []string `json:"user_ids" validate:"omitempty,dive,notblank"`
}

// List returns a page of notifications for the current user.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	page, err := h.service.GetUserNotifications(requestContext(c), userID, services.ListNotificationsInput{
		Page:       queryParam(c, "page", 1, strconv.Atoi),
		Limit:      queryParam(c, "limit", services.DefaultPageSize, strconv.Atoi),
		UnreadOnly: queryParam(c, "unread_only", false, strconv.ParseBool),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, page.Notifications, &response.Meta{
		Page:        page.CurrentPage,
		PerPage:     page.Limit,
		Total:       page.Total,
		TotalPages:  page.TotalPages,
		HasMore:     page.HasMore,
		UnreadCount: page.UnreadCount,
	})
}

// UnreadCount returns the number of unread notifications for the current user.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	count, err := h.service.GetUnreadCount(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": count})
}

// MarkRead marks the listed notifications read. Ids owned by other users or
// already read are ignored.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var payload markReadPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	updated, err := h.service.MarkAsRead(requestContext(c), payload.IDs, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// MarkAllRead marks every unread notification of the current user read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	updated, err := h.service.MarkAllAsRead(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// Delete removes a notification. Deleting an unknown or foreign id succeeds
// without effect.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, apperrors.NewBadRequest("notification id is required"))
		return
	}

	if err := h.service.DeleteNotification(requestContext(c), id, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id})
}

// Create persists a single notification and delivers it on the channels the
// recipient allows.
func (h *NotificationHandler) Create(c *gin.Context) {
	var payload createNotificationPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	input := services.CreateNotificationInput{
		RecipientID: strings.TrimSpace(payload.RecipientID),
		Type:        payload.Type,
		Title:       payload.Title,
		Message:     payload.Message,
		ActionURL:   payload.ActionURL,
	}
	if payload.Data != nil {
		input.Data = payload.Data
	}
	if payload.Channels != nil {
		input.Channels = &models.Channels{
			InApp: payload.Channels.InApp,
			Email: payload.Channels.Email,
			SMS:   payload.Channels.SMS,
		}
	}

	ctx := requestContext(c)
	dto, err := h.service.Create(ctx, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	delivery := h.service.Deliver(ctx, dto)
	response.Success(c, http.StatusCreated, gin.H{
		"notification": dto,
		"delivery":     delivery,
	})
}

// Broadcast sends a system notification to the listed users, or to every
// active user when none are listed.
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	var payload broadcastPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	ctx := requestContext(c)
	created, err := h.service.CreateSystemNotification(ctx, payload.Message, payload.Type, payload.UserIDs)
	h.service.DeliverAll(ctx, created)
	if err != nil {
		response.ErrorWithDetails(c, err, gin.H{"created": len(created)})
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"created": len(created)})
}
