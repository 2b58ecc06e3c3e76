package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"club_billing_portal/internal/domain/member"
	"club_billing_portal/internal/domain/notification"
	"club_billing_portal/internal/domain/obligation"
	"club_billing_portal/internal/domain/settlement"
)

const (
	testKeySecret     = "test-key-secret"
	testWebhookSecret = "test-webhook-secret"
)

func signWith(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

type ledgerFixture struct {
	ledger         *LedgerService
	obligationRepo *fakeObligationRepo
	notifRepo      *fakeNotificationRepo
	gateway        *fakeGateway
}

func newLedgerFixture(t *testing.T, members ...*member.Member) *ledgerFixture {
	t.Helper()
	if len(members) == 0 {
		members = []*member.Member{activeMember(1, "asha")}
	}
	obligationRepo := newFakeObligationRepo()
	notifRepo := newFakeNotificationRepo()
	gw := &fakeGateway{}
	notifier := NewNotificationService(notifRepo, newFakeMemberRepo(members...), &fakePublisher{}, &fakeEmailSender{}, nil, testLogger())
	verifier := settlement.NewVerifier(testKeySecret, testWebhookSecret)
	return &ledgerFixture{
		ledger:         NewLedgerService(obligationRepo, verifier, gw, notifier, testLogger()),
		obligationRepo: obligationRepo,
		notifRepo:      notifRepo,
		gateway:        gw,
	}
}

func (f *ledgerFixture) addObligation(memberID int64, status obligation.Status) *obligation.Obligation {
	o := &obligation.Obligation{
		MemberID:   memberID,
		Type:       obligation.TypeMembershipFee,
		Amount:     250000,
		Currency:   "INR",
		Status:     status,
		DueDate:    time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		FiscalYear: "2026-27",
	}
	return f.obligationRepo.add(o)
}

var memberActor = Actor{MemberID: 1, Position: member.PositionMember}
var treasurerActor = Actor{MemberID: 9, Position: member.PositionTreasurer}

func TestInitiateSettlement(t *testing.T) {
	f := newLedgerFixture(t)
	o := f.addObligation(1, obligation.StatusPending)

	got, order, err := f.ledger.InitiateSettlement(context.Background(), memberActor, o.ID)
	if err != nil {
		t.Fatalf("InitiateSettlement failed: %v", err)
	}
	if got.Status != obligation.StatusProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}
	if order.Amount != o.Amount || order.Currency != "INR" {
		t.Errorf("order %+v does not match obligation", order)
	}
	if !got.GatewayOrderRef.Valid || got.GatewayOrderRef.String != order.Ref {
		t.Error("order ref not recorded on obligation")
	}
}

func TestInitiateSettlementOwnership(t *testing.T) {
	f := newLedgerFixture(t)
	o := f.addObligation(2, obligation.StatusPending)

	if _, _, err := f.ledger.InitiateSettlement(context.Background(), memberActor, o.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized for another member's obligation, got %v", err)
	}
	// An officer may initiate on anyone's behalf.
	if _, _, err := f.ledger.InitiateSettlement(context.Background(), treasurerActor, o.ID); err != nil {
		t.Errorf("officer initiation failed: %v", err)
	}
}

func TestInitiateSettlementRequiresPending(t *testing.T) {
	f := newLedgerFixture(t)
	for _, status := range []obligation.Status{obligation.StatusProcessing, obligation.StatusCompleted, obligation.StatusCancelled} {
		o := f.addObligation(1, status)
		if _, _, err := f.ledger.InitiateSettlement(context.Background(), memberActor, o.ID); !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("status %s: expected ErrIllegalTransition, got %v", status, err)
		}
	}
}

func TestInitiateSettlementGatewayFailureKeepsPending(t *testing.T) {
	f := newLedgerFixture(t)
	f.gateway.failing = true
	o := f.addObligation(1, obligation.StatusPending)

	_, _, err := f.ledger.InitiateSettlement(context.Background(), memberActor, o.ID)
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	stored, _ := f.obligationRepo.GetByID(context.Background(), o.ID)
	if stored.Status != obligation.StatusPending {
		t.Errorf("obligation moved to %s despite gateway failure", stored.Status)
	}
}

func settleToProcessing(t *testing.T, f *ledgerFixture, memberID int64) (*obligation.Obligation, string) {
	t.Helper()
	o := f.addObligation(memberID, obligation.StatusPending)
	_, order, err := f.ledger.InitiateSettlement(context.Background(), treasurerActor, o.ID)
	if err != nil {
		t.Fatalf("setup initiation failed: %v", err)
	}
	return o, order.Ref
}

func TestConfirmSettlementValidSignature(t *testing.T) {
	f := newLedgerFixture(t)
	o, orderRef := settleToProcessing(t, f, 1)
	settlementRef := "pay_abc123"
	sig := signWith(testKeySecret, orderRef+"|"+settlementRef)

	got, err := f.ledger.ConfirmSettlement(context.Background(), orderRef, settlementRef, sig)
	if err != nil {
		t.Fatalf("ConfirmSettlement failed: %v", err)
	}
	if got.Status != obligation.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if !got.PaidAt.Valid {
		t.Error("paidAt not stamped")
	}
	if !strings.HasPrefix(got.ReceiptNumber.String, "REC-") {
		t.Errorf("receipt number %q not issued", got.ReceiptNumber.String)
	}
	if !got.GatewaySignature.Valid || got.GatewaySignature.String != sig {
		t.Errorf("gateway signature %q not recorded", got.GatewaySignature.String)
	}

	notifs := f.notifRepo.byRecipient(o.MemberID)
	if len(notifs) != 1 || notifs[0].Type != notification.TypePaymentSuccess {
		t.Errorf("expected one payment_success notification, got %+v", notifs)
	}
}

func TestConfirmSettlementInvalidSignature(t *testing.T) {
	f := newLedgerFixture(t)
	o, orderRef := settleToProcessing(t, f, 1)

	_, err := f.ledger.ConfirmSettlement(context.Background(), orderRef, "pay_abc123", "deadbeef")
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
	stored, _ := f.obligationRepo.GetByID(context.Background(), o.ID)
	if stored.Status != obligation.StatusFailed {
		t.Errorf("status = %s, want failed after bad signature", stored.Status)
	}

	notifs := f.notifRepo.byRecipient(o.MemberID)
	if len(notifs) != 1 || notifs[0].Type != notification.TypePaymentFailed {
		t.Errorf("expected one payment_failed notification, got %+v", notifs)
	}
}

func TestConfirmSettlementReplay(t *testing.T) {
	f := newLedgerFixture(t)
	_, orderRef := settleToProcessing(t, f, 1)
	settlementRef := "pay_abc123"
	sig := signWith(testKeySecret, orderRef+"|"+settlementRef)

	first, err := f.ledger.ConfirmSettlement(context.Background(), orderRef, settlementRef, sig)
	if err != nil {
		t.Fatalf("first confirmation failed: %v", err)
	}
	second, err := f.ledger.ConfirmSettlement(context.Background(), orderRef, settlementRef, sig)
	if err != nil {
		t.Fatalf("replayed confirmation failed: %v", err)
	}
	if second.ReceiptNumber.String != first.ReceiptNumber.String {
		t.Error("replay issued a new receipt")
	}
	if got := len(f.notifRepo.byRecipient(1)); got != 1 {
		t.Errorf("replay dispatched extra notifications, total %d", got)
	}
}

func TestReceiptNumbersIncrementWithinYear(t *testing.T) {
	f := newLedgerFixture(t, activeMember(1, "asha"), activeMember(2, "ravi"))

	var receipts []string
	for _, memberID := range []int64{1, 2} {
		_, orderRef := settleToProcessing(t, f, memberID)
		settlementRef := "pay_" + orderRef
		sig := signWith(testKeySecret, orderRef+"|"+settlementRef)
		o, err := f.ledger.ConfirmSettlement(context.Background(), orderRef, settlementRef, sig)
		if err != nil {
			t.Fatalf("confirmation failed: %v", err)
		}
		receipts = append(receipts, o.ReceiptNumber.String)
	}

	year := time.Now().UTC().Year()
	want0 := fmt.Sprintf("REC-%d-00001", year)
	want1 := fmt.Sprintf("REC-%d-00002", year)
	if receipts[0] != want0 || receipts[1] != want1 {
		t.Errorf("receipts = %v, want [%s %s]", receipts, want0, want1)
	}
}

func TestReceiptNumbersUniqueUnderConcurrentConfirmations(t *testing.T) {
	const n = 8
	members := make([]*member.Member, n)
	names := []string{"asha", "ravi", "meera", "kiran", "divya", "arun", "leela", "sanjay"}
	for i := range members {
		members[i] = activeMember(int64(i+1), names[i])
	}
	f := newLedgerFixture(t, members...)

	orderRefs := make([]string, n)
	for i := 0; i < n; i++ {
		_, orderRefs[i] = settleToProcessing(t, f, int64(i+1))
	}

	receipts := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			settlementRef := "pay_" + orderRefs[i]
			sig := signWith(testKeySecret, orderRefs[i]+"|"+settlementRef)
			o, err := f.ledger.ConfirmSettlement(context.Background(), orderRefs[i], settlementRef, sig)
			if err != nil {
				t.Errorf("confirmation %d failed: %v", i, err)
				return
			}
			receipts[i] = o.ReceiptNumber.String
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i, r := range receipts {
		if r == "" {
			continue
		}
		if seen[r] {
			t.Errorf("receipt %q issued twice (confirmation %d)", r, i)
		}
		seen[r] = true
	}
	if len(seen) != n {
		t.Errorf("issued %d distinct receipts, want %d", len(seen), n)
	}
}

func TestHandleWebhookCaptured(t *testing.T) {
	f := newLedgerFixture(t)
	o, orderRef := settleToProcessing(t, f, 1)

	body, _ := json.Marshal(WebhookEvent{
		Event:         "settlement.captured",
		OrderRef:      orderRef,
		SettlementRef: "pay_hook1",
		CapturedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Unix(),
	})
	sig := signWith(testWebhookSecret, string(body))

	if err := f.ledger.HandleWebhook(context.Background(), body, sig); err != nil {
		t.Fatalf("HandleWebhook failed: %v", err)
	}
	stored, _ := f.obligationRepo.GetByID(context.Background(), o.ID)
	if stored.Status != obligation.StatusCompleted {
		t.Errorf("status = %s, want completed", stored.Status)
	}
	if stored.PaidAt.Time.Day() != 1 {
		t.Errorf("paidAt = %v, want gateway capture time", stored.PaidAt.Time)
	}
}

func TestHandleWebhookBadSignatureRejectsWholeDelivery(t *testing.T) {
	f := newLedgerFixture(t)
	o, orderRef := settleToProcessing(t, f, 1)

	body, _ := json.Marshal(WebhookEvent{Event: "settlement.captured", OrderRef: orderRef, SettlementRef: "pay_hook1"})
	err := f.ledger.HandleWebhook(context.Background(), body, signWith(testKeySecret, string(body)))
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
	stored, _ := f.obligationRepo.GetByID(context.Background(), o.ID)
	if stored.Status != obligation.StatusProcessing {
		t.Errorf("status = %s, state must not change on rejected webhook", stored.Status)
	}
}

func TestHandleWebhookReplayAppliesOnce(t *testing.T) {
	f := newLedgerFixture(t)
	_, orderRef := settleToProcessing(t, f, 1)

	body, _ := json.Marshal(WebhookEvent{Event: "settlement.captured", OrderRef: orderRef, SettlementRef: "pay_hook1"})
	sig := signWith(testWebhookSecret, string(body))

	for i := 0; i < 3; i++ {
		if err := f.ledger.HandleWebhook(context.Background(), body, sig); err != nil {
			t.Fatalf("delivery %d failed: %v", i+1, err)
		}
	}
	if got := len(f.notifRepo.byRecipient(1)); got != 1 {
		t.Errorf("replays dispatched %d notifications, want 1", got)
	}
}

func TestHandleWebhookFailed(t *testing.T) {
	f := newLedgerFixture(t)
	o, orderRef := settleToProcessing(t, f, 1)

	body, _ := json.Marshal(WebhookEvent{Event: "settlement.failed", OrderRef: orderRef})
	sig := signWith(testWebhookSecret, string(body))

	if err := f.ledger.HandleWebhook(context.Background(), body, sig); err != nil {
		t.Fatalf("HandleWebhook failed: %v", err)
	}
	stored, _ := f.obligationRepo.GetByID(context.Background(), o.ID)
	if stored.Status != obligation.StatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
}

func TestCancelAndRefundRequireOfficer(t *testing.T) {
	f := newLedgerFixture(t)
	o := f.addObligation(1, obligation.StatusPending)

	if err := f.ledger.Cancel(context.Background(), memberActor, o.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("member cancel: expected ErrNotAuthorized, got %v", err)
	}
	if err := f.ledger.Cancel(context.Background(), treasurerActor, o.ID); err != nil {
		t.Errorf("officer cancel failed: %v", err)
	}

	completed := f.addObligation(1, obligation.StatusCompleted)
	completed.PaidAt = sql.NullTime{Time: time.Now(), Valid: true}
	if err := f.ledger.Refund(context.Background(), memberActor, completed.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("member refund: expected ErrNotAuthorized, got %v", err)
	}
	if err := f.ledger.Refund(context.Background(), treasurerActor, completed.ID); err != nil {
		t.Errorf("officer refund failed: %v", err)
	}
}

func TestOverrideTransitionGrid(t *testing.T) {
	tests := []struct {
		from    obligation.Status
		to      obligation.Status
		wantErr bool
	}{
		{obligation.StatusPending, obligation.StatusCancelled, false},
		{obligation.StatusProcessing, obligation.StatusCancelled, false},
		{obligation.StatusFailed, obligation.StatusCancelled, false},
		{obligation.StatusCompleted, obligation.StatusCancelled, true},
		{obligation.StatusRefunded, obligation.StatusCancelled, true},
		{obligation.StatusCompleted, obligation.StatusRefunded, false},
		{obligation.StatusPending, obligation.StatusRefunded, true},
		{obligation.StatusFailed, obligation.StatusRefunded, true},
	}

	for _, tt := range tests {
		f := newLedgerFixture(t)
		o := f.addObligation(1, tt.from)

		var err error
		if tt.to == obligation.StatusRefunded {
			err = f.ledger.Refund(context.Background(), treasurerActor, o.ID)
		} else {
			err = f.ledger.Cancel(context.Background(), treasurerActor, o.ID)
		}

		if tt.wantErr {
			if !errors.Is(err, ErrIllegalTransition) {
				t.Errorf("%s -> %s: expected ErrIllegalTransition, got %v", tt.from, tt.to, err)
			}
		} else if err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		} else {
			stored, _ := f.obligationRepo.GetByID(context.Background(), o.ID)
			if !stored.ProcessedBy.Valid || stored.ProcessedBy.Int64 != treasurerActor.MemberID {
				t.Errorf("%s -> %s: acting officer not recorded", tt.from, tt.to)
			}
		}
	}
}
