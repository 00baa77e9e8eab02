package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/service"
)

// AuthHandler exposes the auth facade over HTTP. The facade is taken from the
// request's provider scope, so the handler itself is stateless.
type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// State returns the current auth read model.
//
// @Summary      Current auth state
// @Tags         auth
// @Produce      json
// @Success      200  {object}  authStateResponse
// @Router       /auth/state [get]
func (h *AuthHandler) State(c echo.Context) error {
	st := service.UseAuth(c.Request().Context()).State()
	return c.JSON(http.StatusOK, toAuthStateResponse(st))
}

// SignIn authenticates with email and password.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  redirectResponse
// @Failure      401   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /auth/sign-in [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	ctx := c.Request().Context()
	if _, err := service.UseAuth(ctx).SignIn(ctx, req.Email, req.Password); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, redirectResponse{RedirectTo: safeRedirect(req.Redirect)})
}

// SignUp registers a new account.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signUpRequest  true  "Account details"
// @Success      201   {object}  signUpResponse
// @Failure      401   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /auth/sign-up [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	ctx := c.Request().Context()
	res, err := service.UseAuth(ctx).SignUp(ctx, req.Email, req.Password, toProfileSeed(req))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, signUpResponse{
		ConfirmationRequired: res.ConfirmationRequired(),
		User:                 toUserResponse(res.User),
	})
}

// Google starts the Google OAuth flow and returns the provider URL.
//
// @Summary      Sign in with Google
// @Tags         auth
// @Produce      json
// @Success      200  {object}  oauthResponse
// @Failure      500  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /auth/google [post]
func (h *AuthHandler) Google(c echo.Context) error {
	ctx := c.Request().Context()
	redirect, err := service.UseAuth(ctx).SignInWithGoogle(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, oauthResponse{Provider: redirect.Provider, URL: redirect.URL})
}

// Callback completes the OAuth round-trip. Failures are reported through the
// notification feed and the auth state, so both outcomes are redirects.
//
// @Summary      OAuth callback
// @Tags         auth
// @Param        code               query  string  false  "Authorization code"
// @Param        error              query  string  false  "Provider error code"
// @Param        error_description  query  string  false  "Provider error description"
// @Success      303
// @Router       /auth/callback [get]
func (h *AuthHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()
	next, _ := service.UseAuth(ctx).CompleteOAuthCallback(ctx, domain.OAuthCallback{
		Code:             c.QueryParam("code"),
		Error:            c.QueryParam("error"),
		ErrorDescription: c.QueryParam("error_description"),
	})
	return c.Redirect(http.StatusSeeOther, next)
}

// SignOut ends the session everywhere and resets the auth state.
//
// @Summary      Sign out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  redirectResponse
// @Failure      503  {object}  errorResponse
// @Router       /auth/sign-out [post]
func (h *AuthHandler) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	next, err := service.UseAuth(ctx).SignOut(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, redirectResponse{RedirectTo: next})
}

// ClearError dismisses the last operation failure.
//
// @Summary      Clear the auth error
// @Tags         auth
// @Success      204
// @Router       /auth/error [delete]
func (h *AuthHandler) ClearError(c echo.Context) error {
	service.UseAuth(c.Request().Context()).ClearAuthError()
	return c.NoContent(http.StatusNoContent)
}

// Dashboard is the authenticated landing page.
//
// @Summary      Dashboard
// @Tags         app
// @Produce      json
// @Success      200  {object}  dashboardResponse
// @Failure      303
// @Failure      503  {object}  map[string]string
// @Router       /dashboard [get]
func (h *AuthHandler) Dashboard(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	st := service.UseAuth(c.Request().Context()).State()
	return c.JSON(http.StatusOK, dashboardResponse{
		User:    toUserResponse(user),
		Profile: toProfileResponse(st.Profile),
	})
}
