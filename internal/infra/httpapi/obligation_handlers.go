package httpapi

import (
	"context"
	"time"

	"club_billing_portal/internal/app"
	"club_billing_portal/internal/domain/obligation"

	"github.com/gofiber/fiber/v2"
)

type obligationResponse struct {
	ID            int64             `json:"id"`
	MemberID      int64             `json:"memberId"`
	PeriodID      *int64            `json:"periodId,omitempty"`
	Type          obligation.Type   `json:"type"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Status        obligation.Status `json:"status"`
	DueDate       string            `json:"dueDate"`
	PaidAt        *time.Time        `json:"paidAt,omitempty"`
	OrderRef      string            `json:"orderRef,omitempty"`
	ReceiptNumber string            `json:"receiptNumber,omitempty"`
	FiscalYear    string            `json:"fiscalYear"`
	Description   string            `json:"description,omitempty"`
	RemindersSent int               `json:"remindersSent"`
}

func obligationToResponse(o *obligation.Obligation) obligationResponse {
	resp := obligationResponse{
		ID:            o.ID,
		MemberID:      o.MemberID,
		Type:          o.Type,
		Amount:        o.Amount,
		Currency:      o.Currency,
		Status:        o.Status,
		DueDate:       o.DueDate.Format(dateLayout),
		OrderRef:      o.GatewayOrderRef.String,
		ReceiptNumber: o.ReceiptNumber.String,
		FiscalYear:    o.FiscalYear,
		Description:   o.Description.String,
		RemindersSent: o.RemindersSent,
	}
	if o.PeriodID.Valid {
		resp.PeriodID = &o.PeriodID.Int64
	}
	if o.PaidAt.Valid {
		resp.PaidAt = &o.PaidAt.Time
	}
	return resp
}

func (s *Server) handleListObligations(c *fiber.Ctx) error {
	actor := actorFrom(c)

	f := obligation.ListFilter{
		Status:   obligation.Status(c.Query("status")),
		MemberID: int64(c.QueryInt("memberId")),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 20),
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
		}
		f.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
		}
		f.To = t
	}

	// Non-admins only ever see their own ledger entries.
	if !actor.IsAdmin() {
		f.MemberID = actor.MemberID
	}

	items, total, totals, err := s.ledger.List(c.Context(), f)
	if err != nil {
		return s.respondError(c, err)
	}

	out := make([]obligationResponse, 0, len(items))
	for _, o := range items {
		out = append(out, obligationToResponse(o))
	}
	return ok(c, fiber.Map{
		"items":  out,
		"total":  total,
		"totals": totals,
		"page":   f.Page,
		"limit":  f.Limit,
	})
}

func (s *Server) handleGetObligation(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid obligation id")
	}
	o, err := s.ledger.Get(c.Context(), int64(id))
	if err != nil {
		return s.respondError(c, err)
	}
	actor := actorFrom(c)
	if !actor.IsAdmin() && o.MemberID != actor.MemberID {
		return fail(c, fiber.StatusForbidden, "Insufficient permissions")
	}
	return ok(c, obligationToResponse(o))
}

func (s *Server) handleSettlementOrder(c *fiber.Ctx) error {
	var req struct {
		ObligationID int64 `json:"obligationId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	o, order, err := s.ledger.InitiateSettlement(c.Context(), actorFrom(c), req.ObligationID)
	if err != nil {
		return s.respondError(c, err)
	}
	return ok(c, fiber.Map{
		"obligation": obligationToResponse(o),
		"order": fiber.Map{
			"ref":      order.Ref,
			"amount":   order.Amount,
			"currency": order.Currency,
		},
	})
}

func (s *Server) handleSettlementConfirm(c *fiber.Ctx) error {
	var req struct {
		OrderRef      string `json:"orderRef"`
		SettlementRef string `json:"settlementRef"`
		Signature     string `json:"signature"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.OrderRef == "" || req.SettlementRef == "" || req.Signature == "" {
		return fail(c, fiber.StatusBadRequest, "orderRef, settlementRef and signature are required")
	}
	o, err := s.ledger.ConfirmSettlement(c.Context(), req.OrderRef, req.SettlementRef, req.Signature)
	if err != nil {
		return s.respondError(c, err)
	}
	return ok(c, obligationToResponse(o))
}

func (s *Server) handleSettlementWebhook(c *fiber.Ctx) error {
	signature := c.Get("X-Gateway-Signature")
	if signature == "" {
		return fail(c, fiber.StatusBadRequest, "Missing signature header")
	}
	// Verification runs over the raw bytes, exactly as signed.
	if err := s.ledger.HandleWebhook(c.Context(), c.Body(), signature); err != nil {
		return s.respondError(c, err)
	}
	return ok(c, fiber.Map{"received": true})
}

func (s *Server) handleCancelObligation(c *fiber.Ctx) error {
	return s.handleOverride(c, s.ledger.Cancel)
}

func (s *Server) handleRefundObligation(c *fiber.Ctx) error {
	return s.handleOverride(c, s.ledger.Refund)
}

func (s *Server) handleOverride(c *fiber.Ctx, apply func(ctx context.Context, actor app.Actor, id int64) error) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid obligation id")
	}
	if err := apply(c.Context(), actorFrom(c), int64(id)); err != nil {
		return s.respondError(c, err)
	}
	o, err := s.ledger.Get(c.Context(), int64(id))
	if err != nil {
		return s.respondError(c, err)
	}
	return ok(c, obligationToResponse(o))
}
