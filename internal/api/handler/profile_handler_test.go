package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/sociallab/sociallab/internal/core/domain"
)

func avatarForm(t *testing.T, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="avatar"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte(content))
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestProfileHandler_Get(t *testing.T) {
	c, rec := newContext(&stubAuth{state: signedIn(&domain.Profile{ID: "u1", Username: "ana"})}, http.MethodGet, "/profile", "", nil)

	if err := NewProfileHandler(&stubProfileService{}, 0).Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp profileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Username != "ana" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestProfileHandler_Get_NoProfileYet(t *testing.T) {
	c, _ := newContext(&stubAuth{state: signedIn(nil)}, http.MethodGet, "/profile", "", nil)

	if err := NewProfileHandler(&stubProfileService{}, 0).Get(c); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestProfileHandler_Update(t *testing.T) {
	svc := &stubProfileService{}
	c, rec := newContext(&stubAuth{state: signedIn(nil)}, http.MethodPut, "/profile", echo.MIMEApplicationJSON,
		jsonBody(`{"full_name":"Ana Maria","linkedin_url":"https://linkedin.com/in/ana"}`))

	if err := NewProfileHandler(svc, 0).Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.updated.FullName == nil || *svc.updated.FullName != "Ana Maria" || svc.updated.LinkedinURL == nil {
		t.Fatalf("update = %+v", svc.updated)
	}
	if svc.updated.Username != nil || svc.updated.AvatarURL != nil {
		t.Fatal("omitted fields must stay nil")
	}
}

func TestProfileHandler_Update_Rejected(t *testing.T) {
	cases := map[string]string{
		"empty":        `{}`,
		"bad url":      `{"twitter_url":"not a url"}`,
		"bad username": `{"username":"a b"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubProfileService{}
			c, _ := newContext(&stubAuth{state: signedIn(nil)}, http.MethodPut, "/profile", echo.MIMEApplicationJSON, jsonBody(body))

			err := NewProfileHandler(svc, 0).Update(c)
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %v", err)
			}
			if !svc.updated.Empty() {
				t.Fatal("service must not be called")
			}
		})
	}
}

func TestProfileHandler_Update_UsernameTaken(t *testing.T) {
	svc := &stubProfileService{updateErr: fmt.Errorf("update profile: %w", domain.ErrProfileExists)}
	c, _ := newContext(&stubAuth{state: signedIn(nil)}, http.MethodPut, "/profile", echo.MIMEApplicationJSON, jsonBody(`{"username":"taken"}`))

	if err := NewProfileHandler(svc, 0).Update(c); !errors.Is(err, domain.ErrProfileExists) {
		t.Fatalf("expected ErrProfileExists, got %v", err)
	}
}

func TestProfileHandler_UploadAvatar(t *testing.T) {
	svc := &stubProfileService{}
	body, ct := avatarForm(t, "me.png", "image/png", "pixels")
	c, rec := newContext(&stubAuth{state: signedIn(nil)}, http.MethodPost, "/profile/avatar", ct, body)

	if err := NewProfileHandler(svc, 0).UploadAvatar(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.uploadName != "me.png" || svc.uploadType != "image/png" || svc.uploadBytes != "pixels" {
		t.Fatalf("upload = %+v", svc)
	}
	if !strings.Contains(rec.Body.String(), "avatar_url") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestProfileHandler_UploadAvatar_Rejected(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		content     string
		limit       int64
		want        int
	}{
		{"not an image", "application/pdf", "%PDF", 0, http.StatusUnsupportedMediaType},
		{"too large", "image/png", strings.Repeat("x", 32), 16, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubProfileService{}
			body, ct := avatarForm(t, "file.bin", tc.contentType, tc.content)
			c, _ := newContext(&stubAuth{state: signedIn(nil)}, http.MethodPost, "/profile/avatar", ct, body)

			err := NewProfileHandler(svc, tc.limit).UploadAvatar(c)
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != tc.want {
				t.Fatalf("expected %d, got %v", tc.want, err)
			}
			if svc.uploadName != "" {
				t.Fatal("service must not be called")
			}
		})
	}
}

func TestProfileHandler_UploadAvatar_MissingFile(t *testing.T) {
	c, _ := newContext(&stubAuth{state: signedIn(nil)}, http.MethodPost, "/profile/avatar", echo.MIMEApplicationJSON, jsonBody(`{}`))

	var he *echo.HTTPError
	if err := NewProfileHandler(&stubProfileService{}, 0).UploadAvatar(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestProfileHandler_Refresh(t *testing.T) {
	auth := &stubAuth{state: signedIn(nil), refreshed: &domain.Profile{ID: "u1", FullName: "Fresh"}}
	c, rec := newContext(auth, http.MethodPost, "/profile/refresh", "", nil)

	if err := NewProfileHandler(&stubProfileService{}, 0).Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Fresh") {
		t.Fatalf("body = %s", rec.Body.String())
	}

	auth.refreshed = nil
	c, _ = newContext(auth, http.MethodPost, "/profile/refresh", "", nil)
	if err := NewProfileHandler(&stubProfileService{}, 0).Refresh(c); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}
