package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"club_billing_portal/internal/domain/gateway"
	"club_billing_portal/internal/domain/member"
	"club_billing_portal/internal/domain/notification"
	"club_billing_portal/internal/domain/obligation"
	"club_billing_portal/internal/domain/period"
	idb "club_billing_portal/internal/infra/database"

	"github.com/sirupsen/logrus"
)

var (
	errMockDown    = errors.New("mock collaborator down")
	errMockGateway = errors.New("mock gateway error")
)

var (
	_ member.Repository       = (*fakeMemberRepo)(nil)
	_ period.Repository       = (*fakePeriodRepo)(nil)
	_ obligation.Repository   = (*fakeObligationRepo)(nil)
	_ notification.Repository = (*fakeNotificationRepo)(nil)
	_ gateway.Client          = (*fakeGateway)(nil)
	_ EmailSender             = (*fakeEmailSender)(nil)
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// --- member directory ---

type fakeMemberRepo struct {
	members map[int64]*member.Member
	listErr error
	getErr  error
}

func newFakeMemberRepo(members ...*member.Member) *fakeMemberRepo {
	r := &fakeMemberRepo{members: make(map[int64]*member.Member)}
	for _, m := range members {
		r.members[m.ID] = m
	}
	return r
}

func (r *fakeMemberRepo) GetByID(_ context.Context, id int64) (*member.Member, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	m, ok := r.members[id]
	if !ok {
		return nil, idb.ErrMemberNotFound
	}
	return m, nil
}

func (r *fakeMemberRepo) List(_ context.Context, f member.Filter) ([]*member.Member, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*member.Member
	for _, m := range r.members {
		if !matchesFilter(m, f) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func matchesFilter(m *member.Member, f member.Filter) bool {
	for _, id := range f.ExcludeIDs {
		if m.ID == id {
			return false
		}
	}
	if len(f.MembershipTypes) > 0 {
		found := false
		for _, t := range f.MembershipTypes {
			if m.MembershipType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.IncludeIDs) > 0 {
		found := false
		for _, id := range f.IncludeIDs {
			if m.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.OnlyActive && m.Status != member.StatusActive {
		return false
	}
	return true
}

func (r *fakeMemberRepo) ListByBirthday(_ context.Context, month, day int) ([]*member.Member, error) {
	var out []*member.Member
	for _, m := range r.members {
		if m.Status != member.StatusActive || !m.BirthDate.Valid {
			continue
		}
		if int(m.BirthDate.Time.Month()) == month && m.BirthDate.Time.Day() == day {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMemberRepo) ListByAnniversary(_ context.Context, month, day int) ([]*member.Member, error) {
	var out []*member.Member
	for _, m := range r.members {
		if m.Status != member.StatusActive || !m.AnniversaryDate.Valid {
			continue
		}
		if int(m.AnniversaryDate.Time.Month()) == month && m.AnniversaryDate.Time.Day() == day {
			out = append(out, m)
		}
	}
	return out, nil
}

// --- billing periods ---

type fakePeriodRepo struct {
	periods map[int64]*period.Period
	nextID  int64
}

func newFakePeriodRepo() *fakePeriodRepo {
	return &fakePeriodRepo{periods: make(map[int64]*period.Period), nextID: 1}
}

func (r *fakePeriodRepo) Create(_ context.Context, p *period.Period) error {
	p.ID = r.nextID
	r.nextID++
	r.periods[p.ID] = p
	return nil
}

func (r *fakePeriodRepo) GetByID(_ context.Context, id int64) (*period.Period, error) {
	p, ok := r.periods[id]
	if !ok {
		return nil, idb.ErrPeriodNotFound
	}
	return p, nil
}

func (r *fakePeriodRepo) Update(_ context.Context, p *period.Period) error {
	if _, ok := r.periods[p.ID]; !ok {
		return idb.ErrPeriodNotFound
	}
	r.periods[p.ID] = p
	return nil
}

func (r *fakePeriodRepo) List(_ context.Context, f period.ListFilter) ([]*period.Period, error) {
	var out []*period.Period
	for _, p := range r.periods {
		if f.FiscalYear != "" && p.FiscalYear != f.FiscalYear {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		if f.OnlyActive && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *fakePeriodRepo) ListPendingGeneration(_ context.Context) ([]*period.Period, error) {
	var out []*period.Period
	for _, p := range r.periods {
		if p.AutoGenerate && !p.Generated && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePeriodRepo) MarkGenerated(_ context.Context, id int64) error {
	p, ok := r.periods[id]
	if !ok {
		return idb.ErrPeriodNotFound
	}
	p.Generated = true
	return nil
}

// --- obligation ledger ---

type fakeObligationRepo struct {
	mu           sync.Mutex
	obligations  map[int64]*obligation.Obligation
	nextID       int64
	receiptSeq   map[int]int
	createErrFor map[int64]error // memberID -> error on CreateIfAbsent
}

func newFakeObligationRepo() *fakeObligationRepo {
	return &fakeObligationRepo{
		obligations:  make(map[int64]*obligation.Obligation),
		nextID:       1,
		receiptSeq:   make(map[int]int),
		createErrFor: make(map[int64]error),
	}
}

func (r *fakeObligationRepo) add(o *obligation.Obligation) *obligation.Obligation {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = r.nextID
	r.nextID++
	r.obligations[o.ID] = o
	return o
}

func (r *fakeObligationRepo) CreateIfAbsent(_ context.Context, o *obligation.Obligation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.createErrFor[o.MemberID]; err != nil {
		return false, err
	}
	for _, existing := range r.obligations {
		if existing.MemberID == o.MemberID &&
			existing.PeriodID.Valid && o.PeriodID.Valid &&
			existing.PeriodID.Int64 == o.PeriodID.Int64 &&
			existing.Type == o.Type {
			return false, nil
		}
	}
	o.ID = r.nextID
	r.nextID++
	r.obligations[o.ID] = o
	return true, nil
}

func (r *fakeObligationRepo) Create(_ context.Context, o *obligation.Obligation) error {
	r.add(o)
	return nil
}

func (r *fakeObligationRepo) GetByID(_ context.Context, id int64) (*obligation.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.obligations[id]
	if !ok {
		return nil, idb.ErrObligationNotFound
	}
	return o, nil
}

func (r *fakeObligationRepo) GetByOrderRef(_ context.Context, orderRef string) (*obligation.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.findByOrderRef(orderRef)
	if o == nil {
		return nil, idb.ErrObligationNotFound
	}
	return o, nil
}

func (r *fakeObligationRepo) findByOrderRef(orderRef string) *obligation.Obligation {
	for _, o := range r.obligations {
		if o.GatewayOrderRef.Valid && o.GatewayOrderRef.String == orderRef {
			return o
		}
	}
	return nil
}

func (r *fakeObligationRepo) List(_ context.Context, f obligation.ListFilter) ([]*obligation.Obligation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*obligation.Obligation
	for _, o := range r.obligations {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.MemberID != 0 && o.MemberID != f.MemberID {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (r *fakeObligationRepo) TotalsByStatus(_ context.Context, f obligation.ListFilter) (map[obligation.Status]obligation.StatusTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := make(map[obligation.Status]obligation.StatusTotal)
	for _, o := range r.obligations {
		if f.MemberID != 0 && o.MemberID != f.MemberID {
			continue
		}
		t := totals[o.Status]
		t.Count++
		t.Amount += o.Amount
		totals[o.Status] = t
	}
	return totals, nil
}

func (r *fakeObligationRepo) MarkProcessing(_ context.Context, id int64, orderRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.obligations[id]
	if !ok {
		return idb.ErrObligationNotFound
	}
	if o.Status != obligation.StatusPending {
		return idb.ErrStatusConflict
	}
	o.Status = obligation.StatusProcessing
	o.GatewayOrderRef.String, o.GatewayOrderRef.Valid = orderRef, true
	return nil
}

func (r *fakeObligationRepo) MarkCompleted(_ context.Context, id int64, settlementRef, signature, receiptNumber string, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.obligations[id]
	if !ok {
		return idb.ErrObligationNotFound
	}
	if o.Status != obligation.StatusPending && o.Status != obligation.StatusProcessing {
		return idb.ErrStatusConflict
	}
	o.Status = obligation.StatusCompleted
	o.GatewaySettlementRef.String, o.GatewaySettlementRef.Valid = settlementRef, true
	o.GatewaySignature.String, o.GatewaySignature.Valid = signature, true
	o.ReceiptNumber.String, o.ReceiptNumber.Valid = receiptNumber, true
	o.PaidAt.Time, o.PaidAt.Valid = paidAt, true
	return nil
}

func (r *fakeObligationRepo) MarkFailed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.obligations[id]
	if !ok {
		return idb.ErrObligationNotFound
	}
	if o.Status != obligation.StatusPending && o.Status != obligation.StatusProcessing {
		return idb.ErrStatusConflict
	}
	o.Status = obligation.StatusFailed
	return nil
}

func (r *fakeObligationRepo) Override(_ context.Context, id int64, to obligation.Status, actorID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.obligations[id]
	if !ok {
		return idb.ErrObligationNotFound
	}
	if !obligation.CanTransition(o.Status, to) {
		return idb.ErrStatusConflict
	}
	o.Status = to
	o.ProcessedBy.Int64, o.ProcessedBy.Valid = actorID, true
	return nil
}

func (r *fakeObligationRepo) SettleByOrderRef(_ context.Context, orderRef, settlementRef string, paidAt time.Time) (bool, *obligation.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.findByOrderRef(orderRef)
	if o == nil {
		return false, nil, idb.ErrObligationNotFound
	}
	if o.Status != obligation.StatusPending && o.Status != obligation.StatusProcessing {
		return false, o, nil
	}
	o.Status = obligation.StatusCompleted
	o.GatewaySettlementRef.String, o.GatewaySettlementRef.Valid = settlementRef, true
	o.PaidAt.Time, o.PaidAt.Valid = paidAt, true
	return true, o, nil
}

func (r *fakeObligationRepo) FailByOrderRef(_ context.Context, orderRef string) (bool, *obligation.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.findByOrderRef(orderRef)
	if o == nil {
		return false, nil, idb.ErrObligationNotFound
	}
	if o.Status != obligation.StatusPending && o.Status != obligation.StatusProcessing {
		return false, o, nil
	}
	o.Status = obligation.StatusFailed
	return true, o, nil
}

func (r *fakeObligationRepo) ListPendingDueOn(_ context.Context, day time.Time) ([]*obligation.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*obligation.Obligation
	for _, o := range r.obligations {
		if o.Status != obligation.StatusPending {
			continue
		}
		y1, m1, d1 := o.DueDate.Date()
		y2, m2, d2 := day.Date()
		if y1 == y2 && m1 == m2 && d1 == d2 {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeObligationRepo) ListPendingOverdue(_ context.Context, day time.Time) ([]*obligation.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*obligation.Obligation
	for _, o := range r.obligations {
		if o.Status == obligation.StatusPending && o.DueDate.Before(day) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeObligationRepo) RecordReminder(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.obligations[id]
	if !ok {
		return idb.ErrObligationNotFound
	}
	o.RemindersSent++
	o.LastReminderAt.Time, o.LastReminderAt.Valid = at, true
	return nil
}

func (r *fakeObligationRepo) NextReceiptSeq(_ context.Context, year int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receiptSeq[year]++
	return r.receiptSeq[year], nil
}

// --- notifications ---

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[int64]*notification.Notification
	nextID        int64
	createErr     error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[int64]*notification.Notification), nextID: 1}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	n.ID = r.nextID
	r.nextID++
	n.CreatedAt = time.Now()
	r.notifications[n.ID] = n
	return nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id int64) (*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, idb.ErrNotificationNotFound
	}
	return n, nil
}

func (r *fakeNotificationRepo) List(_ context.Context, f notification.ListFilter) ([]*notification.Notification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Notification
	for _, n := range r.notifications {
		if n.RecipientID != f.RecipientID {
			continue
		}
		if f.OnlyUnread && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, len(out), nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, recipientID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) UpdateDelivery(_ context.Context, id int64, ch notification.Channel, out notification.DeliveryOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return idb.ErrNotificationNotFound
	}
	if n.Delivery == nil {
		n.Delivery = make(map[notification.Channel]notification.DeliveryOutcome)
	}
	n.Delivery[ch] = out
	return nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id, recipientID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return idb.ErrNotificationNotFound
	}
	n.IsRead = true
	n.ReadAt.Time, n.ReadAt.Valid = at, true
	return nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, recipientID int64, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			n.ReadAt.Time, n.ReadAt.Valid = at, true
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, id, recipientID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return idb.ErrNotificationNotFound
	}
	delete(r.notifications, id)
	return nil
}

func (r *fakeNotificationRepo) DeleteRead(_ context.Context, recipientID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, n := range r.notifications {
		if n.RecipientID == recipientID && n.IsRead {
			delete(r.notifications, id)
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) DeleteOldRead(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, n := range r.notifications {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(r.notifications, id)
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) byRecipient(recipientID int64) []*notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Notification
	for _, n := range r.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out
}

// --- delivery collaborators ---

type fakeGateway struct {
	orders  int
	failing bool
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*gateway.Order, error) {
	if g.failing {
		return nil, errMockGateway
	}
	g.orders++
	return &gateway.Order{
		Ref:      "order_" + receipt,
		Amount:   amount,
		Currency: currency,
	}, nil
}

type fakeEmailSender struct {
	sent    []string // recipient addresses
	failing bool
}

func (s *fakeEmailSender) Send(to, subject, body string) error {
	if s.failing {
		return errMockDown
	}
	s.sent = append(s.sent, to)
	return nil
}

type fakeTelegramClient struct {
	sent    []int64 // chat ids
	failing bool
}

func (c *fakeTelegramClient) SendMessage(chatID int64, text string) error {
	if c.failing {
		return errMockDown
	}
	c.sent = append(c.sent, chatID)
	return nil
}

type fakePublisher struct {
	emitted []string // event names
}

func (p *fakePublisher) Emit(recipientID int64, event string, payload any) error {
	p.emitted = append(p.emitted, event)
	return nil
}
