package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// RequireRole returns a middleware that only lets requests through when
// the role claim set by JWTAuth matches one of the allowed roles.
// Assignment triggers mutate booking state, so they are restricted to
// operational roles rather than guest tokens.
func RequireRole(allowed ...string) echo.MiddlewareFunc {
    permitted := make(map[string]bool, len(allowed))
    for _, role := range allowed {
        permitted[role] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role, _ := c.Get("role").(string)
            if role == "" {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "missing role"})
            }
            if !permitted[role] {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient role"})
            }
            return next(c)
        }
    }
}
