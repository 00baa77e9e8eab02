package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
	"github.com/sociallab/sociallab/internal/core/service"
)

// DefaultMaxAvatarBytes caps avatar uploads when no limit is configured.
const DefaultMaxAvatarBytes int64 = 2 << 20

// ProfileHandler serves the signed-in user's profile. All routes sit behind RequireAuth.
type ProfileHandler struct {
	service        ports.ProfileService
	maxAvatarBytes int64
}

func NewProfileHandler(service ports.ProfileService, maxAvatarBytes int64) *ProfileHandler {
	if maxAvatarBytes <= 0 {
		maxAvatarBytes = DefaultMaxAvatarBytes
	}
	return &ProfileHandler{service: service, maxAvatarBytes: maxAvatarBytes}
}

// Get returns the cached profile of the signed-in user.
//
// @Summary      Get my profile
// @Tags         profile
// @Produce      json
// @Success      200  {object}  profileResponse
// @Failure      404  {object}  errorResponse
// @Router       /profile [get]
func (h *ProfileHandler) Get(c echo.Context) error {
	if _, err := ctxUser(c); err != nil {
		return err
	}
	profile := service.UseAuth(c.Request().Context()).State().Profile
	if profile == nil {
		return domain.ErrProfileNotFound
	}
	return c.JSON(http.StatusOK, toProfileResponse(profile))
}

// Update changes the given profile fields. Omitted fields are left as they are.
//
// @Summary      Update my profile
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        body  body      profileRequest  true  "Fields to change"
// @Success      200   {object}  profileResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /profile [put]
func (h *ProfileHandler) Update(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	upd := toProfileUpdate(req)
	if upd.Empty() {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "no fields to update")
	}

	profile, err := h.service.UpdateProfile(c.Request().Context(), user.ID, upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfileResponse(profile))
}

// UploadAvatar stores a new avatar image from the multipart field "avatar".
//
// @Summary      Upload my avatar
// @Tags         profile
// @Accept       mpfd
// @Produce      json
// @Param        avatar  formData  file  true  "Image file"
// @Success      200     {object}  profileResponse
// @Failure      413     {object}  errorResponse
// @Failure      415     {object}  errorResponse
// @Router       /profile/avatar [post]
func (h *ProfileHandler) UploadAvatar(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("avatar")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "avatar file is required")
	}
	if fh.Size > h.maxAvatarBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "avatar is too large")
	}
	contentType := fh.Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, "image/") {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "avatar must be an image")
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	profile, err := h.service.UploadAvatar(c.Request().Context(), user.ID, fh.Filename, f, contentType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfileResponse(profile))
}

// Refresh reloads the cached profile from the store.
//
// @Summary      Reload my profile
// @Tags         profile
// @Produce      json
// @Success      200  {object}  profileResponse
// @Failure      404  {object}  errorResponse
// @Router       /profile/refresh [post]
func (h *ProfileHandler) Refresh(c echo.Context) error {
	if _, err := ctxUser(c); err != nil {
		return err
	}
	ctx := c.Request().Context()
	profile, err := service.UseAuth(ctx).RefreshProfile(ctx)
	if err != nil {
		return err
	}
	if profile == nil {
		return domain.ErrProfileNotFound
	}
	return c.JSON(http.StatusOK, toProfileResponse(profile))
}
