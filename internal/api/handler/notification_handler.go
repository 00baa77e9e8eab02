package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sociallab/sociallab/internal/core/domain"
)

// notificationSource hands out pending notifications exactly once.
type notificationSource interface {
	Drain() []domain.Notification
}

type NotificationHandler struct {
	source notificationSource
}

func NewNotificationHandler(source notificationSource) *NotificationHandler {
	return &NotificationHandler{source: source}
}

// List drains pending notifications.
//
// @Summary      Pending notifications
// @Tags         notifications
// @Produce      json
// @Success      200  {array}  domain.Notification
// @Router       /notifications [get]
func (h *NotificationHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.source.Drain())
}
