package app

import (
	"context"
	"fmt"
	"time"

	"club_billing_portal/internal/domain/event"
	"club_billing_portal/internal/domain/member"
	"club_billing_portal/internal/domain/notification"
	domainTelegram "club_billing_portal/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// EmailSender delivers a single notification email.
type EmailSender interface {
	Send(to, subject, body string) error
}

// DispatchInput describes one notification to create and deliver.
type DispatchInput struct {
	RecipientID   int64
	Type          notification.Type
	Title         string
	Message       string
	Priority      notification.Priority
	Channels      []notification.Channel
	RelatedEntity *notification.RelatedEntity
	ActionURL     string
	ActionText    string
}

// NotificationService persists notifications and pushes them through the
// requested delivery channels. The record always exists before any
// delivery attempt; channel outcomes are tracked independently and a
// failed channel never blocks the others.
type NotificationService struct {
	notifRepo  notification.Repository
	memberRepo member.Repository
	events     event.Publisher
	email      EmailSender           // nil disables the channel
	telegram   domainTelegram.Client // nil disables the channel
	logger     *logrus.Logger
}

func NewNotificationService(
	nr notification.Repository,
	mr member.Repository,
	events event.Publisher,
	email EmailSender,
	telegram domainTelegram.Client,
	logger *logrus.Logger,
) *NotificationService {
	return &NotificationService{
		notifRepo:  nr,
		memberRepo: mr,
		events:     events,
		email:      email,
		telegram:   telegram,
		logger:     logger,
	}
}

// Dispatch persists the notification, then attempts each requested channel.
// The returned notification is valid even when every delivery failed.
func (s *NotificationService) Dispatch(ctx context.Context, in DispatchInput) (*notification.Notification, error) {
	if in.Priority == "" {
		in.Priority = notification.PriorityMedium
	}
	if len(in.Channels) == 0 {
		in.Channels = []notification.Channel{notification.ChannelInApp}
	}

	n := &notification.Notification{
		RecipientID:   in.RecipientID,
		Type:          in.Type,
		Title:         in.Title,
		Message:       in.Message,
		Priority:      in.Priority,
		Channels:      in.Channels,
		Delivery:      make(map[notification.Channel]notification.DeliveryOutcome),
		RelatedEntity: in.RelatedEntity,
	}
	if in.ActionURL != "" {
		n.ActionURL.String, n.ActionURL.Valid = in.ActionURL, true
	}
	if in.ActionText != "" {
		n.ActionText.String, n.ActionText.Valid = in.ActionText, true
	}

	if err := s.notifRepo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	for _, ch := range in.Channels {
		switch ch {
		case notification.ChannelInApp:
			s.deliverInApp(n)
		case notification.ChannelEmail:
			s.deliverEmail(ctx, n)
		case notification.ChannelTelegram:
			s.deliverTelegram(ctx, n)
		default:
			s.logger.WithField("channel", ch).Warn("Skipping unknown notification channel")
		}
	}
	return n, nil
}

// DispatchBulk fans one message out to many recipients, isolating failures
// per recipient.
func (s *NotificationService) DispatchBulk(ctx context.Context, recipientIDs []int64, in DispatchInput) []*notification.Notification {
	created := make([]*notification.Notification, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		in.RecipientID = id
		n, err := s.Dispatch(ctx, in)
		if err != nil {
			s.logger.WithError(err).WithField("recipient_id", id).Error("Bulk dispatch failed for recipient")
			continue
		}
		created = append(created, n)
	}
	return created
}

// deliverInApp pushes through the event bus. Best effort: no outcome is
// persisted beyond the attempt.
func (s *NotificationService) deliverInApp(n *notification.Notification) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(n.RecipientID, "notification", n); err != nil {
		s.logger.WithError(err).WithField("notification_id", n.ID).Debug("In-app emit failed")
	}
}

func (s *NotificationService) deliverEmail(ctx context.Context, n *notification.Notification) {
	out := notification.DeliveryOutcome{SentAt: time.Now().UTC()}
	if s.email == nil {
		out.Error = "email channel not configured"
	} else if m, err := s.memberRepo.GetByID(ctx, n.RecipientID); err != nil {
		out.Error = fmt.Sprintf("recipient lookup failed: %v", err)
	} else if m.Email == "" {
		out.Error = "recipient has no email address"
	} else if err := s.email.Send(m.Email, n.Title, "Dear "+m.FullName()+",\n\n"+n.Message); err != nil {
		out.Error = err.Error()
	} else {
		out.Sent = true
	}
	s.recordOutcome(ctx, n, notification.ChannelEmail, out)
}

func (s *NotificationService) deliverTelegram(ctx context.Context, n *notification.Notification) {
	out := notification.DeliveryOutcome{SentAt: time.Now().UTC()}
	if s.telegram == nil {
		out.Error = "telegram channel not configured"
	} else if m, err := s.memberRepo.GetByID(ctx, n.RecipientID); err != nil {
		out.Error = fmt.Sprintf("recipient lookup failed: %v", err)
	} else if !m.TelegramChatID.Valid {
		out.Error = "recipient has no telegram chat"
	} else if err := s.telegram.SendMessage(m.TelegramChatID.Int64, n.Title+"\n\n"+n.Message); err != nil {
		out.Error = err.Error()
	} else {
		out.Sent = true
	}
	s.recordOutcome(ctx, n, notification.ChannelTelegram, out)
}

func (s *NotificationService) recordOutcome(ctx context.Context, n *notification.Notification, ch notification.Channel, out notification.DeliveryOutcome) {
	n.Delivery[ch] = out
	if err := s.notifRepo.UpdateDelivery(ctx, n.ID, ch, out); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"notification_id": n.ID,
			"channel":         ch,
		}).Error("Failed to record delivery outcome")
	}
	if out.Error != "" {
		s.logger.WithFields(logrus.Fields{
			"notification_id": n.ID,
			"channel":         ch,
			"delivery_error":  out.Error,
		}).Warn("Notification channel delivery failed")
	}
}

// List returns a recipient's notifications with the unread count.
func (s *NotificationService) List(ctx context.Context, f notification.ListFilter) ([]*notification.Notification, int, int, error) {
	items, total, err := s.notifRepo.List(ctx, f)
	if err != nil {
		return nil, 0, 0, err
	}
	unread, err := s.notifRepo.CountUnread(ctx, f.RecipientID)
	if err != nil {
		return nil, 0, 0, err
	}
	return items, total, unread, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID int64) error {
	return s.notifRepo.MarkRead(ctx, id, recipientID, time.Now().UTC())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID int64) (int, error) {
	return s.notifRepo.MarkAllRead(ctx, recipientID, time.Now().UTC())
}

func (s *NotificationService) Delete(ctx context.Context, id, recipientID int64) error {
	return s.notifRepo.Delete(ctx, id, recipientID)
}

func (s *NotificationService) DeleteRead(ctx context.Context, recipientID int64) (int, error) {
	return s.notifRepo.DeleteRead(ctx, recipientID)
}
