package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/repair-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)
	authGroup.Post("/staff", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin), cfg.Auth.CreateStaff)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)
	api.Post("/tickets", auth.RequireRole(domain.RoleCustomer), cfg.Tickets.CreateTicket)
	api.Get("/tickets", auth.RequireRole(domain.RoleCustomer), cfg.Tickets.ListMyTickets)
	api.Get("/staff/tickets", auth.RequireStaff(), cfg.StaffTickets.ListStaffTickets)

	// the engine decides who may mutate; the routes only require an identity
	ticket := api.Group("/tickets/:ticketId")
	ticket.Get("", cfg.Tickets.GetTicket)
	ticket.Get("/transitions", auth.RequireStaff(), cfg.Tickets.AllowedTransitions)
	ticket.Get("/attachments/*", cfg.Tickets.DownloadAttachment)
	ticket.Patch("/status", cfg.Tickets.ChangeStatus)
	ticket.Post("/comments", cfg.Tickets.AddComment)
	ticket.Post("/escalate", cfg.Tickets.Escalate)
}
