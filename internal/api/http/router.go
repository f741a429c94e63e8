package http

import (
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/checkin-service/internal/api/http/handlers"
	"github.com/spec-kit/checkin-service/internal/auth"
	"github.com/spec-kit/checkin-service/internal/config"
	"github.com/spec-kit/checkin-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Kiosk          *handlers.KioskHandler
	Attendance     *handlers.AttendanceHandler
	Visitors       *handlers.VisitorHandler
	Sessions       *handlers.SessionHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        nethttp.Handler
	RateLimit      config.RateLimitConfig
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	mw := cfg.AuthMiddleware
	scanLimit := rateLimit(cfg.RateLimit.ScanPerMinute)
	manualLimit := rateLimit(cfg.RateLimit.ManualPerMinute)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", manualLimit, cfg.Auth.Login)
	authGroup.Post("/logout", mw.Handle, cfg.Auth.Logout)

	app.Get("/qr-display", mw.Handle, auth.RequireRole(domain.RoleKiosk, domain.RoleAdmin), cfg.Kiosk.QRDisplay)
	app.Post("/qr-scan", scanLimit, mw.Optional, cfg.Kiosk.QRScan)

	app.Post("/clock-in", manualLimit, cfg.Attendance.ClockIn)
	app.Post("/clock-out", manualLimit, cfg.Attendance.ClockOut)
	app.Post("/biometric/scan", scanLimit, mw.Handle,
		auth.RequireRole(domain.RoleKiosk, domain.RoleSecurity, domain.RoleAdmin), cfg.Attendance.BiometricScan)

	attendance := app.Group("/attendance", mw.Handle, auth.RequireRole())
	attendance.Get("/status", cfg.Attendance.Status)
	attendance.Get("/records", cfg.Attendance.Records)
	attendance.Get("/flagged", auth.RequireRole(domain.RoleHR, domain.RoleAdmin), cfg.Attendance.Flagged)
	attendance.Post("/:id/review", auth.RequireRole(domain.RoleHR, domain.RoleAdmin), cfg.Attendance.Review)

	desk := auth.RequireRole(domain.RoleSecurity, domain.RoleKiosk, domain.RoleAdmin)
	visitors := app.Group("/visitors", mw.Handle)
	visitors.Post("/checkin", desk, cfg.Visitors.CheckIn)
	visitors.Post("/checkout", desk, cfg.Visitors.CheckOut)
	visitors.Get("/active", auth.RequireRole(domain.RoleSecurity, domain.RoleHR, domain.RoleAdmin), cfg.Visitors.Active)
	visitors.Get("/logs", auth.RequireRole(domain.RoleSecurity, domain.RoleHR, domain.RoleAdmin), cfg.Visitors.Logs)

	sessions := app.Group("/sessions", mw.Handle, auth.RequireRole())
	sessions.Get("/", cfg.Sessions.List)
	sessions.Post("/revoke-all", cfg.Sessions.RevokeAll)
	sessions.Delete("/:id", cfg.Sessions.Delete)
}
