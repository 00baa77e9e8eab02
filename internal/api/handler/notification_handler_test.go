package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/sociallab/sociallab/internal/core/domain"
)

type stubFeed struct {
	pending []domain.Notification
}

func (f *stubFeed) Drain() []domain.Notification {
	out := f.pending
	f.pending = []domain.Notification{}
	return out
}

func TestNotificationHandler_List(t *testing.T) {
	feed := &stubFeed{pending: []domain.Notification{
		{Title: "Signed in", Description: "Welcome back!", Variant: domain.VariantDefault},
	}}
	h := NewNotificationHandler(feed)
	e := echo.New()

	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/notifications", nil), rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var got []domain.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Signed in" {
		t.Fatalf("notifications = %+v", got)
	}

	rec = httptest.NewRecorder()
	if err := h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/notifications", nil), rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("second drain = %q; want an empty list", body)
	}
}
