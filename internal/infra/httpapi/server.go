package httpapi

import (
	"errors"

	"club_billing_portal/internal/app"
	"club_billing_portal/internal/domain/period"
	idb "club_billing_portal/internal/infra/database"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Server wires the application services into a fiber app.
type Server struct {
	app       *fiber.App
	periods   *app.PeriodService
	ledger    *app.LedgerService
	notifier  *app.NotificationService
	jwtSecret []byte
	logger    *logrus.Logger
}

func NewServer(
	periods *app.PeriodService,
	ledger *app.LedgerService,
	notifier *app.NotificationService,
	jwtSecret []byte,
	logger *logrus.Logger,
) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "club-billing-portal",
			DisableStartupMessage: true,
		}),
		periods:   periods,
		ledger:    ledger,
		notifier:  notifier,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	// The webhook authenticates with its own HMAC header, not a JWT.
	api.Post("/obligations/settlement/webhook", s.handleSettlementWebhook)

	api.Use(AuthMiddleware(s.jwtSecret))

	api.Get("/periods", s.handleListPeriods)
	api.Get("/periods/:id", s.handleGetPeriod)
	api.Post("/periods", RequireOfficer(), s.handleCreatePeriod)
	api.Put("/periods/:id", RequireOfficer(), s.handleUpdatePeriod)
	api.Post("/periods/:id/generate", RequireOfficer(), s.handleGeneratePeriod)

	api.Get("/obligations", s.handleListObligations)
	api.Get("/obligations/:id", s.handleGetObligation)
	api.Post("/obligations/settlement/order", s.handleSettlementOrder)
	api.Post("/obligations/settlement/confirm", s.handleSettlementConfirm)
	api.Post("/obligations/:id/cancel", RequireOfficer(), s.handleCancelObligation)
	api.Post("/obligations/:id/refund", RequireOfficer(), s.handleRefundObligation)

	api.Get("/notifications", s.handleListNotifications)
	api.Put("/notifications/read-all", s.handleMarkAllNotificationsRead)
	api.Put("/notifications/:id/read", s.handleMarkNotificationRead)
	api.Delete("/notifications/:id", s.handleDeleteNotification)
	api.Delete("/notifications", s.handleDeleteNotifications)
}

// Listen blocks serving HTTP until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": data})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}

// respondError maps service errors onto the response taxonomy.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, app.ErrNotAuthorized):
		return fail(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrSignatureMismatch):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrIllegalTransition):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, app.ErrPeriodGenerated):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, app.ErrGatewayUnavailable):
		return fail(c, fiber.StatusBadGateway, err.Error())
	case errors.Is(err, idb.ErrPeriodNotFound),
		errors.Is(err, idb.ErrObligationNotFound),
		errors.Is(err, idb.ErrNotificationNotFound),
		errors.Is(err, idb.ErrMemberNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	}

	var verr *period.ValidationError
	if errors.As(err, &verr) {
		return fail(c, fiber.StatusBadRequest, verr.Error())
	}

	s.logger.WithError(err).Error("Unhandled request error")
	return fail(c, fiber.StatusInternalServerError, "Internal server error")
}
