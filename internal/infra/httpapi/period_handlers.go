package httpapi

import (
	"database/sql"
	"time"

	"club_billing_portal/internal/domain/period"

	"github.com/gofiber/fiber/v2"
)

type periodRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	StartDate   string `json:"startDate"`
	DueDate     string `json:"dueDate"`
	FinalDate   string `json:"finalDate"`
	FiscalYear  string `json:"fiscalYear"`
	Quarter     string `json:"quarter"`
	Eligibility struct {
		Mode            string   `json:"mode"`
		IncludeIDs      []int64  `json:"includeIds"`
		ExcludeIDs      []int64  `json:"excludeIds"`
		MembershipTypes []string `json:"membershipTypes"`
	} `json:"eligibility"`
	Reminders struct {
		Enabled       bool  `json:"enabled"`
		DaysBeforeDue []int `json:"daysBeforeDue"`
	} `json:"reminderSchedule"`
	LateFee struct {
		Enabled         bool   `json:"enabled"`
		Kind            string `json:"kind"`
		Amount          int64  `json:"amount"`
		GracePeriodDays int    `json:"gracePeriodDays"`
	} `json:"lateFee"`
	AutoGenerate bool   `json:"autoGenerate"`
	IsActive     *bool  `json:"isActive"`
	Notes        string `json:"notes"`
}

type periodResponse struct {
	ID           int64              `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	Type         period.Type        `json:"type"`
	Category     period.Category    `json:"category"`
	Amount       int64              `json:"amount"`
	Currency     string             `json:"currency"`
	StartDate    string             `json:"startDate"`
	DueDate      string             `json:"dueDate"`
	FinalDate    string             `json:"finalDate"`
	FiscalYear   string             `json:"fiscalYear"`
	Quarter      string             `json:"quarter"`
	Eligibility  period.Eligibility `json:"eligibility"`
	AutoGenerate bool               `json:"autoGenerate"`
	Generated    bool               `json:"generated"`
	IsActive     bool               `json:"isActive"`
	Status       period.Status      `json:"status"`
}

const dateLayout = "2006-01-02"

func (r *periodRequest) toPeriod() (*period.Period, error) {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return nil, &period.ValidationError{Field: "startDate", Message: "invalid date, expected YYYY-MM-DD"}
	}
	due, err := time.Parse(dateLayout, r.DueDate)
	if err != nil {
		return nil, &period.ValidationError{Field: "dueDate", Message: "invalid date, expected YYYY-MM-DD"}
	}
	final, err := time.Parse(dateLayout, r.FinalDate)
	if err != nil {
		return nil, &period.ValidationError{Field: "finalDate", Message: "invalid date, expected YYYY-MM-DD"}
	}

	currency := r.Currency
	if currency == "" {
		currency = "INR"
	}
	quarter := r.Quarter
	if quarter == "" {
		quarter = "N/A"
	}
	mode := period.EligibilityMode(r.Eligibility.Mode)
	if mode == "" {
		mode = period.EligibilityActive
	}
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}

	p := &period.Period{
		Title:      r.Title,
		Type:       period.Type(r.Type),
		Category:   period.Category(r.Category),
		Amount:     r.Amount,
		Currency:   currency,
		StartDate:  start,
		DueDate:    due,
		FinalDate:  final,
		FiscalYear: r.FiscalYear,
		Quarter:    quarter,
		Eligibility: period.Eligibility{
			Mode:            mode,
			IncludeIDs:      r.Eligibility.IncludeIDs,
			ExcludeIDs:      r.Eligibility.ExcludeIDs,
			MembershipTypes: r.Eligibility.MembershipTypes,
		},
		Reminders: period.ReminderSchedule{
			Enabled:       r.Reminders.Enabled,
			DaysBeforeDue: r.Reminders.DaysBeforeDue,
		},
		LateFee: period.LateFee{
			Enabled:         r.LateFee.Enabled,
			Kind:            period.LateFeeKind(r.LateFee.Kind),
			Amount:          r.LateFee.Amount,
			GracePeriodDays: r.LateFee.GracePeriodDays,
		},
		AutoGenerate: r.AutoGenerate,
		IsActive:     active,
	}
	if r.Description != "" {
		p.Description = sql.NullString{String: r.Description, Valid: true}
	}
	if r.Notes != "" {
		p.Notes = sql.NullString{String: r.Notes, Valid: true}
	}
	return p, nil
}

func (s *Server) periodToResponse(p *period.Period) periodResponse {
	return periodResponse{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description.String,
		Type:         p.Type,
		Category:     p.Category,
		Amount:       p.Amount,
		Currency:     p.Currency,
		StartDate:    p.StartDate.Format(dateLayout),
		DueDate:      p.DueDate.Format(dateLayout),
		FinalDate:    p.FinalDate.Format(dateLayout),
		FiscalYear:   p.FiscalYear,
		Quarter:      p.Quarter,
		Eligibility:  p.Eligibility,
		AutoGenerate: p.AutoGenerate,
		Generated:    p.Generated,
		IsActive:     p.IsActive,
		Status:       s.periods.StatusAt(p),
	}
}

func (s *Server) handleCreatePeriod(c *fiber.Ctx) error {
	var req periodRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	p, err := req.toPeriod()
	if err != nil {
		return s.respondError(c, err)
	}
	actor := actorFrom(c)
	p.CreatedBy = actor.MemberID

	result, err := s.periods.Create(c.Context(), actor, p)
	if err != nil {
		return s.respondError(c, err)
	}
	resp := fiber.Map{"period": s.periodToResponse(p)}
	if result.Generation != nil {
		resp["generation"] = result.Generation
	}
	if result.GenerationErr != nil {
		resp["generationWarning"] = "Obligation generation failed; the scheduled sweep will retry it."
	}
	return created(c, resp)
}

func (s *Server) handleUpdatePeriod(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid period id")
	}
	var req periodRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	p, err := req.toPeriod()
	if err != nil {
		return s.respondError(c, err)
	}
	p.ID = int64(id)

	if err := s.periods.Update(c.Context(), actorFrom(c), p); err != nil {
		return s.respondError(c, err)
	}
	return ok(c, s.periodToResponse(p))
}

func (s *Server) handleGetPeriod(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid period id")
	}
	p, err := s.periods.Get(c.Context(), int64(id))
	if err != nil {
		return s.respondError(c, err)
	}
	return ok(c, s.periodToResponse(p))
}

func (s *Server) handleListPeriods(c *fiber.Ctx) error {
	f := period.ListFilter{
		FiscalYear: c.Query("fiscalYear"),
		Category:   period.Category(c.Query("category")),
		Type:       period.Type(c.Query("type")),
	}
	statusFilter := period.Status(c.Query("status"))

	periods, err := s.periods.List(c.Context(), f, statusFilter)
	if err != nil {
		return s.respondError(c, err)
	}
	out := make([]periodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, s.periodToResponse(p))
	}
	return ok(c, out)
}

func (s *Server) handleGeneratePeriod(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid period id")
	}
	result, err := s.periods.Generate(c.Context(), actorFrom(c), int64(id))
	if err != nil {
		return s.respondError(c, err)
	}
	return ok(c, result)
}
