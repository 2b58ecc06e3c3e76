package app

import (
	"context"
	"fmt"
	"time"

	"club_billing_portal/internal/domain/member"
	"club_billing_portal/internal/domain/notification"
	"club_billing_portal/internal/domain/obligation"
	"club_billing_portal/internal/domain/period"
	"club_billing_portal/internal/domain/storage"

	"github.com/sirupsen/logrus"
)

// SweepConfig tunes the scheduled jobs.
type SweepConfig struct {
	ReminderTiers             []int // days before due date, e.g. [7, 3, 1]
	NotificationRetentionDays int
	ArtifactRetentionDays     int
	OverdueRedispatchDays     int // minimum days between overdue notices
}

// SweepService holds the bodies of the scheduled jobs. Each sweep catches
// and logs per-item errors and keeps going; the scheduler isolates whole-
// job failures from one another.
type SweepService struct {
	obligationRepo obligation.Repository
	memberRepo     member.Repository
	periodRepo     period.Repository
	notifRepo      notification.Repository
	notifier       *NotificationService
	generator      *Generator
	artifacts      storage.ArtifactStore
	cfg            SweepConfig
	clock          Clock
	logger         *logrus.Logger
}

func NewSweepService(
	or obligation.Repository,
	mr member.Repository,
	pr period.Repository,
	nr notification.Repository,
	notifier *NotificationService,
	generator *Generator,
	artifacts storage.ArtifactStore,
	cfg SweepConfig,
	clock Clock,
	logger *logrus.Logger,
) *SweepService {
	return &SweepService{
		obligationRepo: or,
		memberRepo:     mr,
		periodRepo:     pr,
		notifRepo:      nr,
		notifier:       notifier,
		generator:      generator,
		artifacts:      artifacts,
		cfg:            cfg,
		clock:          clock,
		logger:         logger,
	}
}

// ReminderSweep dispatches a pre-due reminder for each configured tier.
// The reminder counter caps total reminders at the tier count regardless
// of how many ticks pass while the obligation stays pending.
func (s *SweepService) ReminderSweep(ctx context.Context) error {
	today := Midnight(s.clock.Now())
	tierCount := len(s.cfg.ReminderTiers)

	for _, tier := range s.cfg.ReminderTiers {
		dueDay := today.AddDate(0, 0, tier)
		obligations, err := s.obligationRepo.ListPendingDueOn(ctx, dueDay)
		if err != nil {
			return fmt.Errorf("reminder sweep query failed for tier %d: %w", tier, err)
		}

		for _, o := range obligations {
			if o.RemindersSent >= tierCount {
				continue
			}
			priority := notification.PriorityMedium
			if tier <= 1 {
				priority = notification.PriorityHigh
			}
			_, err := s.notifier.Dispatch(ctx, DispatchInput{
				RecipientID: o.MemberID,
				Type:        notification.TypePaymentReminder,
				Title:       "Payment Reminder",
				Message: fmt.Sprintf("Your payment of %s is due on %s.",
					formatAmount(o.Amount, o.Currency), o.DueDate.Format("02 Jan 2006")),
				Priority:      priority,
				Channels:      []notification.Channel{notification.ChannelInApp, notification.ChannelEmail},
				RelatedEntity: &notification.RelatedEntity{Kind: "obligation", ID: o.ID},
				ActionURL:     fmt.Sprintf("/payments/%d", o.ID),
				ActionText:    "Pay Now",
			})
			if err != nil {
				s.logger.WithError(err).WithField("obligation_id", o.ID).Error("Reminder dispatch failed")
				continue
			}
			if err := s.obligationRepo.RecordReminder(ctx, o.ID, s.clock.Now()); err != nil {
				s.logger.WithError(err).WithField("obligation_id", o.ID).Error("Failed to record reminder")
			}
		}
	}
	return nil
}

// OverdueSweep re-notices pending obligations past their due date with
// urgent priority, capped in frequency by OverdueRedispatchDays.
func (s *SweepService) OverdueSweep(ctx context.Context) error {
	today := Midnight(s.clock.Now())
	obligations, err := s.obligationRepo.ListPendingOverdue(ctx, today)
	if err != nil {
		return fmt.Errorf("overdue sweep query failed: %w", err)
	}

	redispatchAfter := time.Duration(s.cfg.OverdueRedispatchDays) * 24 * time.Hour
	for _, o := range obligations {
		if o.LastReminderAt.Valid && s.clock.Now().Sub(o.LastReminderAt.Time) < redispatchAfter {
			continue
		}
		_, err := s.notifier.Dispatch(ctx, DispatchInput{
			RecipientID: o.MemberID,
			Type:        notification.TypePaymentReminder,
			Title:       "Overdue Payment",
			Message: fmt.Sprintf("Your payment of %s is overdue by %d days.",
				formatAmount(o.Amount, o.Currency), o.DaysOverdue(today)),
			Priority:      notification.PriorityUrgent,
			Channels:      []notification.Channel{notification.ChannelInApp, notification.ChannelEmail},
			RelatedEntity: &notification.RelatedEntity{Kind: "obligation", ID: o.ID},
			ActionURL:     fmt.Sprintf("/payments/%d", o.ID),
			ActionText:    "Pay Now",
		})
		if err != nil {
			s.logger.WithError(err).WithField("obligation_id", o.ID).Error("Overdue notice dispatch failed")
			continue
		}
		if err := s.obligationRepo.RecordReminder(ctx, o.ID, s.clock.Now()); err != nil {
			s.logger.WithError(err).WithField("obligation_id", o.ID).Error("Failed to record overdue notice")
		}
	}
	return nil
}

// WishesSweep sends birthday and anniversary greetings to members whose
// stored month/day matches today. It runs once per day, so each member
// receives at most one greeting per occasion per calendar day.
func (s *SweepService) WishesSweep(ctx context.Context) error {
	now := s.clock.Now()
	month, day := int(now.Month()), now.Day()

	birthdays, err := s.memberRepo.ListByBirthday(ctx, month, day)
	if err != nil {
		return fmt.Errorf("birthday query failed: %w", err)
	}
	for _, m := range birthdays {
		s.sendWish(ctx, m, notification.TypeBirthday, "Happy Birthday!",
			fmt.Sprintf("Wishing you a wonderful birthday, %s! May this year bring you joy and success.", m.FirstName))
	}

	anniversaries, err := s.memberRepo.ListByAnniversary(ctx, month, day)
	if err != nil {
		return fmt.Errorf("anniversary query failed: %w", err)
	}
	for _, m := range anniversaries {
		s.sendWish(ctx, m, notification.TypeAnniversary, "Happy Anniversary!",
			fmt.Sprintf("Happy Anniversary, %s! Wishing you many more years of happiness together.", m.FirstName))
	}
	return nil
}

func (s *SweepService) sendWish(ctx context.Context, m *member.Member, t notification.Type, title, message string) {
	_, err := s.notifier.Dispatch(ctx, DispatchInput{
		RecipientID: m.ID,
		Type:        t,
		Title:       title,
		Message:     message,
		Priority:    notification.PriorityMedium,
		Channels:    []notification.Channel{notification.ChannelInApp, notification.ChannelEmail},
	})
	if err != nil {
		s.logger.WithError(err).WithField("member_id", m.ID).Error("Wish dispatch failed")
	}
}

// GenerationSweep materializes obligations for active periods flagged for
// automatic generation that have not been generated yet.
func (s *SweepService) GenerationSweep(ctx context.Context) error {
	periods, err := s.periodRepo.ListPendingGeneration(ctx)
	if err != nil {
		return fmt.Errorf("generation sweep query failed: %w", err)
	}
	for _, p := range periods {
		if _, err := s.generator.Generate(ctx, p); err != nil {
			s.logger.WithError(err).WithField("period_id", p.ID).Error("Scheduled generation failed")
		}
	}
	return nil
}

// RetentionSweep deletes old read notifications and delegates orphaned-
// artifact cleanup to the file-storage collaborator.
func (s *SweepService) RetentionSweep(ctx context.Context) error {
	cutoff := s.clock.Now().AddDate(0, 0, -s.cfg.NotificationRetentionDays)
	deleted, err := s.notifRepo.DeleteOldRead(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("notification retention failed: %w", err)
	}
	s.logger.WithField("deleted", deleted).Info("Old read notifications removed")

	if s.artifacts != nil {
		age := time.Duration(s.cfg.ArtifactRetentionDays) * 24 * time.Hour
		removed, err := s.artifacts.CleanupOrphaned(ctx, age)
		if err != nil {
			s.logger.WithError(err).Error("Orphaned artifact cleanup failed")
		} else {
			s.logger.WithField("deleted", removed).Info("Orphaned artifacts removed")
		}
	}
	return nil
}
