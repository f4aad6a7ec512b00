// Package router wires the HTTP routes to their handlers.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/rmcalister/rinkroster/internal/handler"
	"github.com/rmcalister/rinkroster/internal/middleware"
	"github.com/rmcalister/rinkroster/internal/model"
)

// Handlers collects every handler the router needs.
type Handlers struct {
	Auth         *handler.AuthHandler
	Members      *handler.MemberHandler
	Bookings     *handler.BookingHandler
	Pools        *handler.PoolHandler
	Teams        *handler.TeamHandler
	Availability *handler.AvailabilityHandler
}

// Register attaches all routes.  Three tiers: public browse, member
// endpoints behind JWT, and manager endpoints behind JWT plus the
// MANAGER role.  browseCache, when non-nil, fronts only the public
// browse endpoints; authenticated responses are never cached.
func Register(e *echo.Echo, h Handlers, jwtSecret string, browseCache echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	// auth
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	// public browse, no token needed
	var browse []echo.MiddlewareFunc
	if browseCache != nil {
		browse = append(browse, browseCache)
	}
	e.GET("/v1/bookings", h.Bookings.ListUpcoming, browse...)
	e.GET("/v1/bookings/:id", h.Bookings.Get, browse...)
	e.GET("/v1/bookings/:id/pool", h.Pools.GetByBooking, browse...)
	e.GET("/v1/bookings/:id/teams", h.Teams.ListInstances, browse...)
	e.GET("/v1/teams/:id", h.Teams.GetInstance, browse...)

	// any authenticated member
	member := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleMember, model.RoleManager),
	)
	member.POST("/auth/logout", h.Auth.Logout)
	member.GET("/me", h.Members.Me)

	member.POST("/pools/:id/registrations", h.Pools.Register)
	member.DELETE("/pools/:id/registrations/self", h.Pools.Withdraw)
	member.DELETE("/pools/:id/registrations/:memberID", h.Pools.Withdraw)
	member.POST("/pools/:id/available", h.Pools.MarkAvailable)
	member.GET("/pools/:id/registrations", h.Pools.ListRegistrations)

	member.GET("/assignments/:id", h.Availability.GetAssignment)
	member.POST("/assignments/:id/confirm", h.Availability.Confirm)

	// manager operations
	manager := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleManager),
	)
	manager.GET("/members", h.Members.List)
	manager.GET("/members/:id", h.Members.Get)
	manager.PATCH("/members/:id/status", h.Members.UpdateStatus)
	manager.PATCH("/members/:id/role", h.Members.UpdateRole)

	manager.POST("/bookings", h.Bookings.Create)
	manager.PUT("/bookings/:id", h.Bookings.Update)
	manager.DELETE("/bookings/:id", h.Bookings.Delete)

	manager.POST("/bookings/:id/pool", h.Pools.Open)
	manager.POST("/pools/:id/close", h.Pools.Close)
	manager.POST("/pools/:id/registrations/:memberID/select", h.Pools.Select)
	manager.POST("/pools/:id/registrations/:memberID/unselect", h.Pools.Unselect)

	manager.POST("/bookings/:id/templates", h.Teams.CreateTemplate)
	manager.GET("/bookings/:id/templates", h.Teams.ListTemplates)
	manager.GET("/templates/:id", h.Teams.GetTemplate)
	manager.PUT("/templates/:id/positions/:position", h.Teams.AssignPosition)
	manager.DELETE("/templates/:id/positions/:position", h.Teams.ClearPosition)

	manager.POST("/bookings/:id/teams", h.Teams.Instantiate)
	manager.POST("/assignments/:id/substitute", h.Availability.Substitute)
}
