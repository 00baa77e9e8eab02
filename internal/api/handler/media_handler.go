package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sociallab/sociallab/internal/core/ports"
)

// MediaHandler streams files uploaded through ports.FileStorage.
type MediaHandler struct {
	storage ports.FileStorage
}

func NewMediaHandler(storage ports.FileStorage) *MediaHandler {
	return &MediaHandler{storage: storage}
}

// Get handles GET /media/:bucket/*.
//
// @Summary      Download a stored file
// @Tags         media
// @Param        bucket  path  string  true  "Bucket name"
// @Param        path    path  string  true  "Object path"
// @Success      200
// @Failure      404  {object}  errorResponse
// @Router       /media/{bucket}/{path} [get]
func (h *MediaHandler) Get(c echo.Context) error {
	bucket := c.Param("bucket")
	objectPath := strings.TrimPrefix(c.Param("*"), "/")
	if bucket == "" || objectPath == "" || strings.Contains(objectPath, "..") {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}

	rc, contentType, err := h.storage.OpenFile(c.Request().Context(), bucket, objectPath)
	if err != nil {
		return err
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "public, max-age=3600")
	return c.Stream(http.StatusOK, contentType, rc)
}
