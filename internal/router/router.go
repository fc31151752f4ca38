package router // wires HTTP routes for the assignment operations API

import (
    "database/sql"

    "github.com/labstack/echo/v4"

    "github.com/restobook/assignd/internal/handler"
    "github.com/restobook/assignd/internal/middleware"
)

// RegisterRoutes registers the unauthenticated surface: only the health
// check, used by load balancers and monitoring.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
    e.GET("/healthz", handler.Health(db))
}

// RegisterAssignment registers the protected assignment trigger under /v1.
// Every route requires a valid operator bearer token; guest tokens cannot
// re-trigger assignment runs.
func RegisterAssignment(e *echo.Echo, a *handler.AssignHandler, jwtSecret string) {
    g := e.Group("/v1")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole("OPERATOR", "ADMIN"))
    g.POST("/bookings/:id/assign", a.TriggerAssignment)
}
