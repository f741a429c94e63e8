package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/checkin-service/internal/api/dto"
	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/repository"
	"github.com/spec-kit/checkin-service/internal/service"
	apperrors "github.com/spec-kit/checkin-service/pkg/util/errorutil"
	"github.com/spec-kit/checkin-service/pkg/validator"
)

// VisitorHandler serves the visitor desk.
type VisitorHandler struct {
	checkin   *service.CheckinService
	validator *validator.Validator
}

// NewVisitorHandler constructs handler.
func NewVisitorHandler(checkin *service.CheckinService, v *validator.Validator) *VisitorHandler {
	return &VisitorHandler{checkin: checkin, validator: v}
}

// CheckIn POST /visitors/checkin.
func (h *VisitorHandler) CheckIn(c *fiber.Ctx) error {
	var req dto.VisitorDetailsRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	outcome, err := h.checkin.CheckInVisitor(c.UserContext(), service.VisitorDetails{
		FullName:       req.FullName,
		Contact:        req.Contact,
		HostEmployeeID: req.HostEmployeeID,
		Purpose:        req.Purpose,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": transitionResponse(outcome)})
}

// CheckOut POST /visitors/checkout.
func (h *VisitorHandler) CheckOut(c *fiber.Ctx) error {
	var req dto.VisitorCheckoutRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	outcome, err := h.checkin.CheckOutVisitor(c.UserContext(), service.VisitorCheckoutInput{
		VisitorID: req.VisitorID,
		Contact:   req.Contact,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(outcome)})
}

// Active GET /visitors/active.
func (h *VisitorHandler) Active(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	visitors, err := h.checkin.ListActiveVisitors(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": visitorResponses(visitors)})
}

// Logs GET /visitors/logs.
func (h *VisitorHandler) Logs(c *fiber.Ctx) error {
	from, err := parseTimeQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	filter := repository.VisitorFilter{From: from, To: to, Limit: limit, Offset: offset}
	if raw := c.Query("status"); raw != "" {
		status := domain.VisitorStatus(raw)
		if status != domain.VisitorCheckedIn && status != domain.VisitorCheckedOut {
			return apperrors.NewValidationError("invalid query parameter", map[string]any{"status": "must be CHECKED_IN or CHECKED_OUT"})
		}
		filter.Status = &status
	}
	if host := c.Query("host_employee_id"); host != "" {
		filter.HostEmployeeID = &host
	}

	visitors, err := h.checkin.ListVisitorLogs(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": visitorResponses(visitors)})
}

func visitorResponses(visitors []domain.VisitorRecord) []dto.VisitorResponse {
	items := make([]dto.VisitorResponse, 0, len(visitors))
	for i := range visitors {
		items = append(items, visitorResponse(&visitors[i]))
	}
	return items
}
