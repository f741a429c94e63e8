package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/checkin-service/internal/api/dto"
	"github.com/spec-kit/checkin-service/internal/auth"
	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/repository"
	"github.com/spec-kit/checkin-service/internal/service"
	apperrors "github.com/spec-kit/checkin-service/pkg/util/errorutil"
	"github.com/spec-kit/checkin-service/pkg/validator"
)

// AttendanceHandler manages manual entry, reader scans and attendance queries.
type AttendanceHandler struct {
	checkin   *service.CheckinService
	validator *validator.Validator
}

// NewAttendanceHandler constructs handler.
func NewAttendanceHandler(checkin *service.CheckinService, v *validator.Validator) *AttendanceHandler {
	return &AttendanceHandler{checkin: checkin, validator: v}
}

// ClockIn POST /clock-in.
func (h *AttendanceHandler) ClockIn(c *fiber.Ctx) error {
	in, err := h.manualInput(c)
	if err != nil {
		return err
	}
	outcome, err := h.checkin.ManualClockIn(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": transitionResponse(outcome)})
}

// ClockOut POST /clock-out.
func (h *AttendanceHandler) ClockOut(c *fiber.Ctx) error {
	in, err := h.manualInput(c)
	if err != nil {
		return err
	}
	outcome, err := h.checkin.ManualClockOut(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(outcome)})
}

func (h *AttendanceHandler) manualInput(c *fiber.Ctx) (service.ManualEntryInput, error) {
	var req dto.ManualEntryRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return service.ManualEntryInput{}, err
	}
	userAgent, ip := clientMeta(c)
	return service.ManualEntryInput{
		EmployeeID: req.UserID,
		Password:   req.Password,
		UserAgent:  userAgent,
		IPAddress:  ip,
	}, nil
}

// BiometricScan POST /biometric/scan.
func (h *AttendanceHandler) BiometricScan(c *fiber.Ctx) error {
	var req dto.BiometricScanRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	outcome, err := h.checkin.BiometricScan(c.UserContext(), domain.ScanResult{
		Success:  req.Success,
		CardID:   req.CardID,
		Template: req.Template,
		Quality:  req.Quality,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(outcome)})
}

// Status GET /attendance/status.
func (h *AttendanceHandler) Status(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	userID, err := targetUser(principal, c.Query("user_id"))
	if err != nil {
		return err
	}
	view, err := h.checkin.AttendanceStatus(c.UserContext(), userID)
	if err != nil {
		return err
	}
	resp := dto.AttendanceStatusResponse{
		UserID:    view.EmployeeID,
		ClockedIn: view.ClockedIn,
		Status:    view.Status,
	}
	if view.Current != nil {
		current := attendanceRecordResponse(view.Current, view.Status)
		resp.Current = &current
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Records GET /attendance/records.
func (h *AttendanceHandler) Records(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	userID, err := targetUser(principal, c.Query("user_id"))
	if err != nil {
		return err
	}
	from, err := parseTimeQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	filter := repository.AttendanceFilter{UserID: &userID, From: from, To: to, Limit: limit, Offset: offset}
	if raw := c.Query("flagged"); raw != "" {
		flagged, err := strconv.ParseBool(raw)
		if err != nil {
			return apperrors.NewValidationError("invalid query parameter", map[string]any{"flagged": "must be a boolean"})
		}
		filter.Flagged = &flagged
	}

	views, err := h.checkin.ListAttendance(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": attendanceViews(views)})
}

// Flagged GET /attendance/flagged.
func (h *AttendanceHandler) Flagged(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	views, err := h.checkin.ListFlagged(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": attendanceViews(views)})
}

// Review POST /attendance/:id/review.
func (h *AttendanceHandler) Review(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ReviewRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, h.validator, &req); err != nil {
			return err
		}
	}
	view, err := h.checkin.ReviewAttendance(c.UserContext(), service.ReviewInput{
		RecordID:   c.Params("id"),
		ReviewerID: principal.Employee.ID,
		Notes:      req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": attendanceRecordResponse(&view.Record, view.Status)})
}

// targetUser resolves whose records are requested. Only HR and ADMIN may look at others.
func targetUser(principal *auth.Principal, requested string) (string, error) {
	if requested == "" || requested == principal.Employee.ID {
		return principal.Employee.ID, nil
	}
	if !auth.HasRole(principal, domain.RoleHR, domain.RoleAdmin) {
		return "", apperrors.NewForbidden("cannot view another employee's attendance")
	}
	return requested, nil
}
