package handler

import (
	"net/url"
	"strings"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/service"
)

// --- Domain → Response ---

func toAuthStateResponse(st domain.AuthState) authStateResponse {
	resp := authStateResponse{
		User:            toUserResponse(st.User),
		Profile:         toProfileResponse(st.Profile),
		IsAuthenticated: st.IsAuthenticated,
		IsLoading:       st.IsLoading,
		AuthError:       st.AuthError,
	}
	if st.Session != nil && !st.Session.ExpiresAt.IsZero() {
		exp := st.Session.ExpiresAt
		resp.SessionExpiresAt = &exp
	}
	return resp
}

func toUserResponse(u *domain.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Provider:    u.Provider,
		ConfirmedAt: u.ConfirmedAt,
		CreatedAt:   u.CreatedAt,
	}
}

func toProfileResponse(p *domain.Profile) *profileResponse {
	if p == nil {
		return nil
	}
	return &profileResponse{
		ID:           p.ID,
		FullName:     p.FullName,
		Username:     p.Username,
		AvatarURL:    p.AvatarURL,
		Phone:        p.Phone,
		LinkedinURL:  p.LinkedinURL,
		TwitterURL:   p.TwitterURL,
		FacebookURL:  p.FacebookURL,
		InstagramURL: p.InstagramURL,
		UpdatedAt:    p.UpdatedAt,
	}
}

// --- Request → Domain ---

func toProfileUpdate(req profileRequest) domain.ProfileUpdate {
	return domain.ProfileUpdate{
		FullName:     req.FullName,
		Username:     req.Username,
		Phone:        req.Phone,
		LinkedinURL:  req.LinkedinURL,
		TwitterURL:   req.TwitterURL,
		FacebookURL:  req.FacebookURL,
		InstagramURL: req.InstagramURL,
	}
}

func toProfileSeed(req signUpRequest) domain.ProfileSeed {
	return domain.ProfileSeed{FullName: req.FullName, Username: req.Username}
}

// safeRedirect accepts only same-origin relative paths and falls back to the
// landing page for anything else, including scheme-relative "//host" forms.
// Browsers drop tabs and newlines from URLs, so any control character is
// rejected before the prefix checks.
func safeRedirect(target string) string {
	if target == "" || strings.IndexFunc(target, isControl) >= 0 {
		return service.LandingPath
	}
	if !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return service.LandingPath
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return service.LandingPath
	}
	return target
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
