package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainGateway "club_billing_portal/internal/domain/gateway"
	"club_billing_portal/internal/domain/notification"
	"club_billing_portal/internal/domain/obligation"
	"club_billing_portal/internal/domain/settlement"
	idb "club_billing_portal/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LedgerService is the single mutation path for obligation status. API
// confirmations, gateway webhooks and administrative overrides all go
// through it; no other component writes status.
type LedgerService struct {
	obligationRepo obligation.Repository
	verifier       *settlement.Verifier
	gateway        domainGateway.Client
	notifier       *NotificationService
	logger         *logrus.Logger
}

func NewLedgerService(
	or obligation.Repository,
	verifier *settlement.Verifier,
	gw domainGateway.Client,
	notifier *NotificationService,
	logger *logrus.Logger,
) *LedgerService {
	return &LedgerService{
		obligationRepo: or,
		verifier:       verifier,
		gateway:        gw,
		notifier:       notifier,
		logger:         logger,
	}
}

func (s *LedgerService) Get(ctx context.Context, id int64) (*obligation.Obligation, error) {
	return s.obligationRepo.GetByID(ctx, id)
}

// List returns a page of obligations with aggregate totals per status.
func (s *LedgerService) List(ctx context.Context, f obligation.ListFilter) ([]*obligation.Obligation, int, map[obligation.Status]obligation.StatusTotal, error) {
	items, total, err := s.obligationRepo.List(ctx, f)
	if err != nil {
		return nil, 0, nil, err
	}
	totals, err := s.obligationRepo.TotalsByStatus(ctx, f)
	if err != nil {
		return nil, 0, nil, err
	}
	return items, total, totals, nil
}

// InitiateSettlement requests a gateway order for a pending obligation and
// transitions it to processing. Members may only settle their own
// obligations; officers may initiate on anyone's behalf.
func (s *LedgerService) InitiateSettlement(ctx context.Context, actor Actor, obligationID int64) (*obligation.Obligation, *domainGateway.Order, error) {
	o, err := s.obligationRepo.GetByID(ctx, obligationID)
	if err != nil {
		return nil, nil, err
	}
	if o.MemberID != actor.MemberID && !actor.IsAdmin() {
		return nil, nil, ErrNotAuthorized
	}
	if o.Status != obligation.StatusPending {
		return nil, nil, ErrIllegalTransition
	}

	receipt := "rcpt_" + uuid.NewString()
	order, err := s.gateway.CreateOrder(ctx, o.Amount, o.Currency, receipt)
	if err != nil {
		s.logger.WithError(err).WithField("obligation_id", o.ID).Warn("Gateway order creation failed; obligation stays pending")
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if err := s.obligationRepo.MarkProcessing(ctx, o.ID, order.Ref); err != nil {
		return nil, nil, s.translate(err)
	}
	o.Status = obligation.StatusProcessing
	o.GatewayOrderRef.String, o.GatewayOrderRef.Valid = order.Ref, true

	s.logger.WithFields(logrus.Fields{
		"obligation_id": o.ID,
		"order_ref":     order.Ref,
	}).Info("Settlement initiated")
	return o, order, nil
}

// ConfirmSettlement applies a client-supplied settlement confirmation. A
// valid signature completes the obligation, stamps the paid time and
// raises a payment_success notification; an invalid one transitions to
// failed (explicitly, never as a silent no-op) and raises
// payment_failed. The expected signature never leaves this method.
func (s *LedgerService) ConfirmSettlement(ctx context.Context, orderRef, settlementRef, signature string) (*obligation.Obligation, error) {
	o, err := s.obligationRepo.GetByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}

	// At-least-once tolerance: a repeated confirmation of an applied
	// settlement is acknowledged without new side effects.
	if o.Status == obligation.StatusCompleted &&
		o.GatewaySettlementRef.Valid && o.GatewaySettlementRef.String == settlementRef {
		return o, nil
	}

	if !s.verifier.VerifyConfirmation(orderRef, settlementRef, signature) {
		if err := s.obligationRepo.MarkFailed(ctx, o.ID); err != nil {
			return nil, s.translate(err)
		}
		o.Status = obligation.StatusFailed
		s.logger.WithFields(logrus.Fields{
			"obligation_id": o.ID,
			"order_ref":     orderRef,
		}).Warn("Settlement confirmation rejected: signature mismatch")
		s.notifyOutcome(ctx, o, false)
		return o, ErrSignatureMismatch
	}

	paidAt := time.Now().UTC()
	receiptNumber, err := s.nextReceiptNumber(ctx, paidAt)
	if err != nil {
		return nil, err
	}
	if err := s.obligationRepo.MarkCompleted(ctx, o.ID, settlementRef, signature, receiptNumber, paidAt); err != nil {
		return nil, s.translate(err)
	}
	o.Status = obligation.StatusCompleted
	o.GatewaySettlementRef.String, o.GatewaySettlementRef.Valid = settlementRef, true
	o.ReceiptNumber.String, o.ReceiptNumber.Valid = receiptNumber, true
	o.PaidAt.Time, o.PaidAt.Valid = paidAt, true

	s.logger.WithFields(logrus.Fields{
		"obligation_id":  o.ID,
		"settlement_ref": settlementRef,
		"receipt_number": receiptNumber,
	}).Info("Settlement confirmed")
	s.notifyOutcome(ctx, o, true)
	return o, nil
}

// WebhookEvent is the gateway callback payload.
type WebhookEvent struct {
	Event         string `json:"event"` // settlement.captured | settlement.failed
	OrderRef      string `json:"orderRef"`
	SettlementRef string `json:"settlementRef"`
	CapturedAt    int64  `json:"capturedAt"` // unix seconds
}

// HandleWebhook verifies and applies a gateway-initiated callback. A bad
// signature rejects the whole delivery with no state change and is logged
// as a security event. Valid deliveries are idempotent: a replay applies
// nothing and raises no duplicate notifications.
func (s *LedgerService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.verifier.VerifyWebhook(body, signature) {
		s.logger.WithField("security_event", "webhook_signature_mismatch").
			Warn("Rejected gateway webhook: signature mismatch")
		return ErrSignatureMismatch
	}

	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("malformed webhook payload: %w", err)
	}

	switch ev.Event {
	case "settlement.captured":
		paidAt := time.Now().UTC()
		if ev.CapturedAt > 0 {
			paidAt = time.Unix(ev.CapturedAt, 0).UTC()
		}
		applied, o, err := s.obligationRepo.SettleByOrderRef(ctx, ev.OrderRef, ev.SettlementRef, paidAt)
		if err != nil {
			return err
		}
		if !applied {
			s.logger.WithField("order_ref", ev.OrderRef).Info("Webhook replay ignored; settlement already applied")
			return nil
		}
		s.notifyOutcome(ctx, o, true)
	case "settlement.failed":
		applied, o, err := s.obligationRepo.FailByOrderRef(ctx, ev.OrderRef)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		s.notifyOutcome(ctx, o, false)
	default:
		s.logger.WithField("event", ev.Event).Info("Ignoring unhandled webhook event")
	}
	return nil
}

// Cancel is the administrative override out of pending/processing/failed.
func (s *LedgerService) Cancel(ctx context.Context, actor Actor, obligationID int64) error {
	return s.override(ctx, actor, obligationID, obligation.StatusCancelled)
}

// Refund is the administrative override out of completed.
func (s *LedgerService) Refund(ctx context.Context, actor Actor, obligationID int64) error {
	return s.override(ctx, actor, obligationID, obligation.StatusRefunded)
}

func (s *LedgerService) override(ctx context.Context, actor Actor, obligationID int64, to obligation.Status) error {
	if !actor.IsAdmin() {
		return ErrNotAuthorized
	}
	if err := s.obligationRepo.Override(ctx, obligationID, to, actor.MemberID); err != nil {
		return s.translate(err)
	}
	s.logger.WithFields(logrus.Fields{
		"obligation_id": obligationID,
		"status":        to,
		"actor_id":      actor.MemberID,
	}).Info("Administrative obligation override applied")
	return nil
}

func (s *LedgerService) nextReceiptNumber(ctx context.Context, paidAt time.Time) (string, error) {
	seq, err := s.obligationRepo.NextReceiptSeq(ctx, paidAt.Year())
	if err != nil {
		return "", fmt.Errorf("failed to number receipt: %w", err)
	}
	return fmt.Sprintf("REC-%d-%05d", paidAt.Year(), seq), nil
}

// notifyOutcome raises the settlement-result notification. Failures are
// logged, not propagated: the ledger state is already correct.
func (s *LedgerService) notifyOutcome(ctx context.Context, o *obligation.Obligation, success bool) {
	in := DispatchInput{
		RecipientID:   o.MemberID,
		Channels:      []notification.Channel{notification.ChannelInApp, notification.ChannelEmail},
		RelatedEntity: &notification.RelatedEntity{Kind: "obligation", ID: o.ID},
	}
	if success {
		in.Type = notification.TypePaymentSuccess
		in.Title = "Payment Successful"
		in.Message = fmt.Sprintf("Your payment of %s has been received successfully.", formatAmount(o.Amount, o.Currency))
	} else {
		in.Type = notification.TypePaymentFailed
		in.Title = "Payment Failed"
		in.Message = fmt.Sprintf("Your payment of %s has failed. Please try again.", formatAmount(o.Amount, o.Currency))
		in.Priority = notification.PriorityHigh
	}
	if _, err := s.notifier.Dispatch(ctx, in); err != nil {
		s.logger.WithError(err).WithField("obligation_id", o.ID).Error("Failed to dispatch settlement notification")
	}
}

// formatAmount renders minor units for human-facing messages.
func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, minor/100, minor%100)
}

// translate maps repository sentinel errors onto the service taxonomy.
func (s *LedgerService) translate(err error) error {
	if errors.Is(err, idb.ErrStatusConflict) {
		return ErrIllegalTransition
	}
	return err
}
