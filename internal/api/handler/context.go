package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sociallab/sociallab/internal/api/middleware"
	"github.com/sociallab/sociallab/internal/core/domain"
)

// ctxUser returns the user RequireAuth stored on the context. A missing user
// means the route was registered outside the guarded group.
func ctxUser(c echo.Context) (*domain.User, error) {
	user, _ := c.Get(middleware.ContextKeyUser).(*domain.User)
	if user == nil || user.ID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authenticated user")
	}
	return user, nil
}
