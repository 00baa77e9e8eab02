package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request types ---

type signInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	// Redirect is the location the guard sent the user away from.
	Redirect string `json:"redirect,omitempty"`
}

type signUpRequest struct {
	Email    string `json:"email"     validate:"required,email"`
	Password string `json:"password"  validate:"required,min=6"`
	FullName string `json:"full_name" validate:"max=120"`
	Username string `json:"username"  validate:"omitempty,min=3,max=30,alphanumunicode"`
}

type profileRequest struct {
	FullName     *string `json:"full_name"     validate:"omitempty,max=120"`
	Username     *string `json:"username"      validate:"omitempty,min=3,max=30,alphanumunicode"`
	Phone        *string `json:"phone"         validate:"omitempty,max=32"`
	LinkedinURL  *string `json:"linkedin_url"  validate:"omitempty,url"`
	TwitterURL   *string `json:"twitter_url"   validate:"omitempty,url"`
	FacebookURL  *string `json:"facebook_url"  validate:"omitempty,url"`
	InstagramURL *string `json:"instagram_url" validate:"omitempty,url"`
}

// --- Response types ---

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Provider    string     `json:"provider,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type profileResponse struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name,omitempty"`
	Username     string    `json:"username,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	LinkedinURL  string    `json:"linkedin_url,omitempty"`
	TwitterURL   string    `json:"twitter_url,omitempty"`
	FacebookURL  string    `json:"facebook_url,omitempty"`
	InstagramURL string    `json:"instagram_url,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// authStateResponse never carries tokens; only the session expiry is exposed.
type authStateResponse struct {
	User             *userResponse    `json:"user"`
	Profile          *profileResponse `json:"profile"`
	IsAuthenticated  bool             `json:"is_authenticated"`
	IsLoading        bool             `json:"is_loading"`
	AuthError        string           `json:"auth_error,omitempty"`
	SessionExpiresAt *time.Time       `json:"session_expires_at,omitempty"`
}

type redirectResponse struct {
	RedirectTo string `json:"redirect_to"`
}

type signUpResponse struct {
	ConfirmationRequired bool          `json:"confirmation_required"`
	User                 *userResponse `json:"user,omitempty"`
}

type oauthResponse struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
}

type dashboardResponse struct {
	User    *userResponse    `json:"user"`
	Profile *profileResponse `json:"profile"`
}
