package middleware

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/sociallab/sociallab/internal/core/ports"
	"github.com/sociallab/sociallab/internal/core/service"
)

// ContextKeyUser is the echo.Context key RequireAuth stores the signed-in user under.
const ContextKeyUser = "user"

// headerRetryAfter tells clients when to re-check a loading auth state.
const headerRetryAfter = "Retry-After"

// redirectParam carries the originally requested location to the sign-in page.
const redirectParam = "redirect"

// ProvideAuth opens the auth provider scope for every request so handlers and
// downstream middleware can reach the facade through service.UseAuth.
func ProvideAuth(auth ports.AuthContext) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(service.WithAuth(req.Context(), auth)))
			return next(c)
		}
	}
}

type loadingResponse struct {
	Status string `json:"status"`
}

// RequireAuth gates protected routes. The decision is taken on every request:
//   - while the auth state is still loading it answers 503 and makes no redirect decision;
//   - unauthenticated requests are sent to the sign-in page with the original
//     path and query preserved in the redirect parameter;
//   - otherwise the user is stored under ContextKeyUser and the request proceeds.
func RequireAuth(signInPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			st := service.UseAuth(c.Request().Context()).State()

			if st.IsLoading {
				c.Response().Header().Set(headerRetryAfter, "1")
				return c.JSON(http.StatusServiceUnavailable, loadingResponse{Status: "loading"})
			}

			if !st.IsAuthenticated {
				target := signInPath + "?" + redirectParam + "=" + url.QueryEscape(c.Request().URL.RequestURI())
				return c.Redirect(http.StatusSeeOther, target)
			}

			c.Set(ContextKeyUser, st.User)
			return next(c)
		}
	}
}
