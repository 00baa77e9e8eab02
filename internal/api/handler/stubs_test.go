package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sociallab/sociallab/internal/api/middleware"
	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/service"
)

type stubAuth struct {
	state domain.AuthState

	signInErr   error
	signUpRes   *domain.SignUpResult
	signUpErr   error
	googleErr   error
	callbackErr error
	signOutErr  error
	refreshed   *domain.Profile
	refreshErr  error

	signInEmail  string
	signUpSeed   domain.ProfileSeed
	callback     domain.OAuthCallback
	errorCleared bool
}

func (s *stubAuth) State() domain.AuthState { return s.state }

func (s *stubAuth) SignIn(_ context.Context, email, _ string) (*domain.Session, error) {
	s.signInEmail = email
	if s.signInErr != nil {
		return nil, s.signInErr
	}
	return &domain.Session{User: domain.User{ID: "u1", Email: email}}, nil
}

func (s *stubAuth) SignUp(_ context.Context, _, _ string, seed domain.ProfileSeed) (*domain.SignUpResult, error) {
	s.signUpSeed = seed
	return s.signUpRes, s.signUpErr
}

func (s *stubAuth) SignInWithGoogle(context.Context) (*domain.OAuthRedirect, error) {
	if s.googleErr != nil {
		return nil, s.googleErr
	}
	return &domain.OAuthRedirect{Provider: "google", URL: "https://accounts.example.com/o/oauth2"}, nil
}

func (s *stubAuth) SignOut(context.Context) (string, error) {
	if s.signOutErr != nil {
		return "", s.signOutErr
	}
	return service.SignedOutPath, nil
}

func (s *stubAuth) CompleteOAuthCallback(_ context.Context, cb domain.OAuthCallback) (string, error) {
	s.callback = cb
	if s.callbackErr != nil {
		return service.SignInPath, s.callbackErr
	}
	return service.LandingPath, nil
}

func (s *stubAuth) RefreshProfile(context.Context) (*domain.Profile, error) {
	return s.refreshed, s.refreshErr
}

func (s *stubAuth) ClearAuthError() { s.errorCleared = true }

func signedIn(p *domain.Profile) domain.AuthState {
	return domain.AuthState{
		User:            &domain.User{ID: "u1", Email: "ana@example.com"},
		Profile:         p,
		IsAuthenticated: true,
		Session:         &domain.Session{AccessToken: "secret-token"},
	}
}

// newContext builds an echo.Context inside the auth provider scope with the
// validator registered. A signed-in state also sets the guarded user.
func newContext(auth *stubAuth, method, target, contentType string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	req = req.WithContext(service.WithAuth(req.Context(), auth))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if auth.state.User != nil {
		c.Set(middleware.ContextKeyUser, auth.state.User)
	}
	return c, rec
}

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

type stubProfileService struct {
	updated     domain.ProfileUpdate
	updateErr   error
	uploadName  string
	uploadType  string
	uploadBytes string
	uploadErr   error
}

func (s *stubProfileService) UpdateProfile(_ context.Context, userID string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	s.updated = upd
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	p := &domain.Profile{ID: userID}
	if upd.FullName != nil {
		p.FullName = *upd.FullName
	}
	return p, nil
}

func (s *stubProfileService) UploadAvatar(_ context.Context, userID, filename string, blob io.Reader, contentType string) (*domain.Profile, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	b, _ := io.ReadAll(blob)
	s.uploadName, s.uploadType, s.uploadBytes = filename, contentType, string(b)
	return &domain.Profile{ID: userID, AvatarURL: "http://localhost:8080/media/avatars/" + filename}, nil
}
