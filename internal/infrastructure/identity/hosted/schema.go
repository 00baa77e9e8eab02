package hosted

import (
	"time"

	"github.com/sociallab/sociallab/internal/core/domain"
)

type userResponse struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	AppMetadata      map[string]any `json:"app_metadata"`
	UserMetadata     map[string]any `json:"user_metadata"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (u userResponse) toDomain() domain.User {
	provider, _ := u.AppMetadata["provider"].(string)
	return domain.User{
		ID:           u.ID,
		Email:        u.Email,
		Provider:     provider,
		UserMetadata: u.UserMetadata,
		ConfirmedAt:  u.EmailConfirmedAt,
		CreatedAt:    u.CreatedAt,
	}
}

// sessionResponse is the token endpoint answer. The signup endpoint returns
// the same shape, or the user's own fields at top level when no session was
// issued.
type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`

	ID               string         `json:"id"`
	Email            string         `json:"email"`
	AppMetadata      map[string]any `json:"app_metadata"`
	UserMetadata     map[string]any `json:"user_metadata"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (r sessionResponse) bareUser() domain.User {
	if r.User.ID != "" {
		return r.User.toDomain()
	}
	return userResponse{
		ID:               r.ID,
		Email:            r.Email,
		AppMetadata:      r.AppMetadata,
		UserMetadata:     r.UserMetadata,
		EmailConfirmedAt: r.EmailConfirmedAt,
		CreatedAt:        r.CreatedAt,
	}.toDomain()
}

type settingsResponse struct {
	External map[string]bool `json:"external"`
}

type errorResponse struct {
	Code             int    `json:"code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e errorResponse) message() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.Message != "":
		return e.Message
	default:
		return e.Error
	}
}
