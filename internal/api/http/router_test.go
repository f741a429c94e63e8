package http

import (
	"bytes"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/checkin-service/internal/api/http/handlers"
	"github.com/spec-kit/checkin-service/internal/auth"
	"github.com/spec-kit/checkin-service/internal/config"
	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/events"
	"github.com/spec-kit/checkin-service/internal/repository/memory"
	"github.com/spec-kit/checkin-service/internal/service"
	"github.com/spec-kit/checkin-service/pkg/validator"
)

const testPassword = "correct horse"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := memory.NewStore()
	store.SeedEmployee(domain.Employee{ID: "emp-1", Name: "Ada", Email: "ada@example.com", PasswordHash: string(hash), Role: domain.RoleEmployee, Active: true})
	store.SeedEmployee(domain.Employee{ID: "hr-1", Name: "Hana", Email: "hr@example.com", PasswordHash: string(hash), Role: domain.RoleHR, Active: true})
	store.SeedEmployee(domain.Employee{ID: "kiosk-1", Name: "Lobby kiosk", Email: "kiosk@example.com", PasswordHash: string(hash), Role: domain.RoleKiosk, Active: true})

	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher(logger)
	sessions := service.NewSessionService(service.SessionDependencies{
		Repo:       memory.NewSessionRepository(),
		Dispatcher: dispatcher,
		Timeout:    30 * time.Minute,
	})
	tokens := service.NewTokenService(service.TokenDependencies{Store: store, TTL: 30 * time.Second})
	checkin := service.NewCheckinService(service.CheckinDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Sessions:   sessions,
		Policy:     service.DefaultAttendancePolicy(),
	})
	tokenMgr := auth.NewTokenManager("test-secret", 15)
	authService := service.NewAuthService(service.AuthDependencies{
		Employees:    store.Employees(),
		Sessions:     sessions,
		TokenManager: tokenMgr,
	})
	v := validator.New()

	app := fiber.New()
	RegisterMiddlewares(app, logger, nil, MiddlewareConfig{Timeout: 5 * time.Second})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("checkin-service", "test", nil),
		Auth:           handlers.NewAuthHandler(authService, v),
		Kiosk:          handlers.NewKioskHandler(tokens, checkin, v),
		Attendance:     handlers.NewAttendanceHandler(checkin, v),
		Visitors:       handlers.NewVisitorHandler(checkin, v),
		Sessions:       handlers.NewSessionHandler(sessions, v),
		AuthMiddleware: auth.NewAuthMiddleware(tokenMgr, store.Employees(), sessions),
		RateLimit:      config.RateLimitConfig{},
	})
	return app
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func doJSON(t *testing.T, app *fiber.App, method, path, bearer string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, env
}

func login(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	status, env := doJSON(t, app, nethttp.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": testPassword})
	if status != nethttp.StatusOK {
		t.Fatalf("login %s: status %d", email, status)
	}
	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.AccessToken == "" {
		t.Fatalf("login %s: missing token", email)
	}
	return data.AccessToken
}

func TestQRDisplayAndScanFlow(t *testing.T) {
	app := newTestApp(t)
	kiosk := login(t, app, "kiosk@example.com")
	employee := login(t, app, "ada@example.com")

	status, env := doJSON(t, app, nethttp.MethodGet, "/qr-display", kiosk, nil)
	if status != nethttp.StatusOK {
		t.Fatalf("qr-display: status %d", status)
	}
	var display struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(env.Data, &display); err != nil || display.Token == "" {
		t.Fatalf("qr-display: bad payload %s", env.Data)
	}

	status, env = doJSON(t, app, nethttp.MethodPost, "/qr-scan", employee, map[string]string{"token": display.Token})
	if status != nethttp.StatusOK {
		t.Fatalf("qr-scan: status %d (%+v)", status, env.Error)
	}
	var scan struct {
		Success     bool          `json:"success"`
		Action      domain.Action `json:"action"`
		ClockInTime *time.Time    `json:"clock_in_time"`
	}
	if err := json.Unmarshal(env.Data, &scan); err != nil {
		t.Fatalf("decode scan: %v", err)
	}
	if !scan.Success || scan.Action != domain.ActionClockIn || scan.ClockInTime == nil {
		t.Fatalf("unexpected scan result: %+v", scan)
	}

	status, env = doJSON(t, app, nethttp.MethodPost, "/qr-scan", employee, map[string]string{"token": display.Token})
	if status != nethttp.StatusConflict || env.Error == nil || env.Error.Code != "TOKEN_ALREADY_USED" {
		t.Fatalf("replayed token: status %d error %+v", status, env.Error)
	}

	status, env = doJSON(t, app, nethttp.MethodGet, "/attendance/status", employee, nil)
	if status != nethttp.StatusOK {
		t.Fatalf("status: %d", status)
	}
	var view struct {
		ClockedIn bool `json:"clocked_in"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil || !view.ClockedIn {
		t.Fatalf("expected clocked in, got %s", env.Data)
	}
}

func TestQRScanRejectsUnknownToken(t *testing.T) {
	app := newTestApp(t)
	employee := login(t, app, "ada@example.com")

	status, env := doJSON(t, app, nethttp.MethodPost, "/qr-scan", employee, map[string]string{"token": "not-a-token"})
	if status != nethttp.StatusBadRequest || env.Error == nil || env.Error.Code != "TOKEN_INVALID" {
		t.Fatalf("unexpected response: %d %+v", status, env.Error)
	}

	status, env = doJSON(t, app, nethttp.MethodPost, "/qr-scan", employee, map[string]string{})
	if status != nethttp.StatusBadRequest || env.Error == nil || env.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("missing token: %d %+v", status, env.Error)
	}
}

func TestQRDisplayRequiresKioskRole(t *testing.T) {
	app := newTestApp(t)
	employee := login(t, app, "ada@example.com")

	if status, _ := doJSON(t, app, nethttp.MethodGet, "/qr-display", "", nil); status != nethttp.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", status)
	}
	if status, _ := doJSON(t, app, nethttp.MethodGet, "/qr-display", employee, nil); status != nethttp.StatusForbidden {
		t.Fatalf("employee: expected 403, got %d", status)
	}
}

func TestManualClockInChecksCredentials(t *testing.T) {
	app := newTestApp(t)

	status, env := doJSON(t, app, nethttp.MethodPost, "/clock-in", "", map[string]string{"user_id": "emp-1", "password": "wrong"})
	if status != nethttp.StatusUnauthorized || env.Error == nil || env.Error.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("wrong password: %d %+v", status, env.Error)
	}

	status, _ = doJSON(t, app, nethttp.MethodPost, "/clock-in", "", map[string]string{"user_id": "emp-1", "password": testPassword})
	if status != nethttp.StatusCreated {
		t.Fatalf("clock-in: expected 201, got %d", status)
	}

	status, env = doJSON(t, app, nethttp.MethodPost, "/clock-in", "", map[string]string{"user_id": "emp-1", "password": testPassword})
	if status != nethttp.StatusConflict || env.Error == nil || env.Error.Code != "RECORD_CONFLICT" {
		t.Fatalf("second clock-in: %d %+v", status, env.Error)
	}

	status, _ = doJSON(t, app, nethttp.MethodPost, "/clock-out", "", map[string]string{"user_id": "emp-1", "password": testPassword})
	if status != nethttp.StatusOK {
		t.Fatalf("clock-out: expected 200, got %d", status)
	}
}

func TestRevokeAllInvalidatesToken(t *testing.T) {
	app := newTestApp(t)
	first := login(t, app, "ada@example.com")
	second := login(t, app, "ada@example.com")

	status, env := doJSON(t, app, nethttp.MethodGet, "/sessions", first, nil)
	if status != nethttp.StatusOK {
		t.Fatalf("list: %d", status)
	}
	var listed []struct {
		ID        string `json:"id"`
		IsCurrent bool   `json:"is_current"`
	}
	if err := json.Unmarshal(env.Data, &listed); err != nil || len(listed) != 2 {
		t.Fatalf("expected 2 sessions, got %s", env.Data)
	}

	status, env = doJSON(t, app, nethttp.MethodPost, "/sessions/revoke-all", first, nil)
	if status != nethttp.StatusOK {
		t.Fatalf("revoke-all: %d %+v", status, env.Error)
	}
	var revoked struct {
		Revoked int64 `json:"revoked"`
	}
	if err := json.Unmarshal(env.Data, &revoked); err != nil || revoked.Revoked != 2 {
		t.Fatalf("expected 2 revoked, got %s", env.Data)
	}

	for _, token := range []string{first, second} {
		status, env = doJSON(t, app, nethttp.MethodGet, "/sessions", token, nil)
		if status != nethttp.StatusUnauthorized || env.Error == nil || env.Error.Code != "SESSION_REVOKED" {
			t.Fatalf("revoked token still accepted: %d %+v", status, env.Error)
		}
	}
}

func TestAttendanceReviewClearsFlag(t *testing.T) {
	app := newTestApp(t)
	hr := login(t, app, "hr@example.com")
	employee := login(t, app, "ada@example.com")

	if status, _ := doJSON(t, app, nethttp.MethodPost, "/clock-in", "", map[string]string{"user_id": "emp-1", "password": testPassword}); status != nethttp.StatusCreated {
		t.Fatalf("clock-in: expected 201, got %d", status)
	}

	status, env := doJSON(t, app, nethttp.MethodGet, "/attendance/flagged", hr, nil)
	if status != nethttp.StatusOK {
		t.Fatalf("flagged: %d %+v", status, env.Error)
	}
	var flagged []struct {
		ID               string `json:"id"`
		FlaggedForReview bool   `json:"flagged_for_review"`
	}
	if err := json.Unmarshal(env.Data, &flagged); err != nil || len(flagged) != 1 {
		t.Fatalf("expected 1 flagged record, got %s", env.Data)
	}
	path := "/attendance/" + flagged[0].ID + "/review"

	if status, _ := doJSON(t, app, nethttp.MethodPost, path, employee, map[string]string{"notes": "self review"}); status != nethttp.StatusForbidden {
		t.Fatalf("employee review: expected 403, got %d", status)
	}

	status, env = doJSON(t, app, nethttp.MethodPost, path, hr, map[string]string{"notes": "confirmed with manager"})
	if status != nethttp.StatusOK {
		t.Fatalf("review: %d %+v", status, env.Error)
	}
	var reviewed struct {
		FlaggedForReview bool   `json:"flagged_for_review"`
		AuditNotes       string `json:"audit_notes"`
	}
	if err := json.Unmarshal(env.Data, &reviewed); err != nil {
		t.Fatalf("decode review: %v", err)
	}
	if reviewed.FlaggedForReview || !bytes.Contains([]byte(reviewed.AuditNotes), []byte("reviewed by hr-1")) {
		t.Fatalf("unexpected reviewed record: %+v", reviewed)
	}

	_, env = doJSON(t, app, nethttp.MethodGet, "/attendance/flagged", hr, nil)
	if err := json.Unmarshal(env.Data, &flagged); err != nil || len(flagged) != 0 {
		t.Fatalf("review queue not cleared: %s", env.Data)
	}

	status, env = doJSON(t, app, nethttp.MethodPost, path, hr, nil)
	if status != nethttp.StatusConflict || env.Error == nil || env.Error.Code != "RECORD_NOT_FLAGGED" {
		t.Fatalf("second review: %d %+v", status, env.Error)
	}
}

func TestVisitorLogs(t *testing.T) {
	app := newTestApp(t)
	kiosk := login(t, app, "kiosk@example.com")
	hr := login(t, app, "hr@example.com")
	employee := login(t, app, "ada@example.com")

	visitor := map[string]string{"full_name": "Vera", "contact": "vera@example.com", "host_employee_id": "emp-1", "purpose": "interview"}
	if status, env := doJSON(t, app, nethttp.MethodPost, "/visitors/checkin", kiosk, visitor); status != nethttp.StatusCreated {
		t.Fatalf("visitor checkin: %d %+v", status, env.Error)
	}
	if status, env := doJSON(t, app, nethttp.MethodPost, "/visitors/checkout", kiosk, map[string]string{"contact": "vera@example.com"}); status != nethttp.StatusOK {
		t.Fatalf("visitor checkout: %d %+v", status, env.Error)
	}

	status, env := doJSON(t, app, nethttp.MethodGet, "/visitors/logs?status=CHECKED_OUT&limit=10", hr, nil)
	if status != nethttp.StatusOK {
		t.Fatalf("logs: %d %+v", status, env.Error)
	}
	var logs []struct {
		FullName string `json:"full_name"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &logs); err != nil || len(logs) != 1 || logs[0].FullName != "Vera" {
		t.Fatalf("expected vera's visit, got %s", env.Data)
	}

	_, env = doJSON(t, app, nethttp.MethodGet, "/visitors/active", hr, nil)
	if err := json.Unmarshal(env.Data, &logs); err != nil || len(logs) != 0 {
		t.Fatalf("expected no active visitors, got %s", env.Data)
	}

	status, env = doJSON(t, app, nethttp.MethodGet, "/visitors/logs?status=GONE", hr, nil)
	if status != nethttp.StatusBadRequest || env.Error == nil || env.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("bad status filter: %d %+v", status, env.Error)
	}
	if status, _ := doJSON(t, app, nethttp.MethodGet, "/visitors/logs", employee, nil); status != nethttp.StatusForbidden {
		t.Fatalf("employee: expected 403, got %d", status)
	}
}

func TestHealthLive(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(nethttp.MethodGet, "/health/live", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("live: %v", err)
	}
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
