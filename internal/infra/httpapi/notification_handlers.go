package httpapi

import (
	"time"

	"club_billing_portal/internal/domain/notification"

	"github.com/gofiber/fiber/v2"
)

type notificationResponse struct {
	ID            int64                                                 `json:"id"`
	Type          notification.Type                                     `json:"type"`
	Title         string                                                `json:"title"`
	Message       string                                                `json:"message"`
	Priority      notification.Priority                                 `json:"priority"`
	Channels      []notification.Channel                                `json:"channels"`
	Delivery      map[notification.Channel]notification.DeliveryOutcome `json:"delivery,omitempty"`
	IsRead        bool                                                  `json:"isRead"`
	ReadAt        *time.Time                                            `json:"readAt,omitempty"`
	RelatedEntity *notification.RelatedEntity                           `json:"relatedEntity,omitempty"`
	ActionURL     string                                                `json:"actionUrl,omitempty"`
	ActionText    string                                                `json:"actionText,omitempty"`
	CreatedAt     time.Time                                             `json:"createdAt"`
}

func notificationToResponse(n *notification.Notification) notificationResponse {
	resp := notificationResponse{
		ID:            n.ID,
		Type:          n.Type,
		Title:         n.Title,
		Message:       n.Message,
		Priority:      n.Priority,
		Channels:      n.Channels,
		Delivery:      n.Delivery,
		IsRead:        n.IsRead,
		RelatedEntity: n.RelatedEntity,
		ActionURL:     n.ActionURL.String,
		ActionText:    n.ActionText.String,
		CreatedAt:     n.CreatedAt,
	}
	if n.ReadAt.Valid {
		resp.ReadAt = &n.ReadAt.Time
	}
	return resp
}

func (s *Server) handleListNotifications(c *fiber.Ctx) error {
	actor := actorFrom(c)
	f := notification.ListFilter{
		RecipientID: actor.MemberID,
		OnlyUnread:  c.QueryBool("unread"),
		Page:        c.QueryInt("page", 1),
		Limit:       c.QueryInt("limit", 20),
	}

	items, total, unread, err := s.notifier.List(c.Context(), f)
	if err != nil {
		return s.respondError(c, err)
	}

	out := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, notificationToResponse(n))
	}
	return ok(c, fiber.Map{
		"items":       out,
		"total":       total,
		"unreadCount": unread,
		"page":        f.Page,
		"limit":       f.Limit,
	})
}

func (s *Server) handleMarkNotificationRead(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid notification id")
	}
	if err := s.notifier.MarkRead(c.Context(), int64(id), actorFrom(c).MemberID); err != nil {
		return s.respondError(c, err)
	}
	return ok(c, fiber.Map{"read": true})
}

func (s *Server) handleMarkAllNotificationsRead(c *fiber.Ctx) error {
	updated, err := s.notifier.MarkAllRead(c.Context(), actorFrom(c).MemberID)
	if err != nil {
		return s.respondError(c, err)
	}
	return ok(c, fiber.Map{"updated": updated})
}

func (s *Server) handleDeleteNotification(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid notification id")
	}
	if err := s.notifier.Delete(c.Context(), int64(id), actorFrom(c).MemberID); err != nil {
		return s.respondError(c, err)
	}
	return ok(c, fiber.Map{"deleted": true})
}

// handleDeleteNotifications bulk-deletes the caller's read notifications.
// Only isRead=true is supported; unread notifications must be deleted
// one at a time.
func (s *Server) handleDeleteNotifications(c *fiber.Ctx) error {
	if !c.QueryBool("isRead") {
		return fail(c, fiber.StatusBadRequest, "Only isRead=true bulk deletion is supported")
	}
	deleted, err := s.notifier.DeleteRead(c.Context(), actorFrom(c).MemberID)
	if err != nil {
		return s.respondError(c, err)
	}
	return ok(c, fiber.Map{"deleted": deleted})
}
