package domain

import "time"

// User is the identity record issued by the identity backend alongside a Session.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Provider     string         `json:"provider,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	ConfirmedAt  *time.Time     `json:"confirmed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Profile is the application-owned record keyed by User.ID. A user may not have
// one yet: the row is provisioned by the backend after sign-up.
type Profile struct {
	ID           string    `json:"id" bson:"_id"`
	FullName     string    `json:"full_name,omitempty" bson:"full_name,omitempty"`
	Username     string    `json:"username,omitempty" bson:"username,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	Phone        string    `json:"phone,omitempty" bson:"phone,omitempty"`
	LinkedinURL  string    `json:"linkedin_url,omitempty" bson:"linkedin_url,omitempty"`
	TwitterURL   string    `json:"twitter_url,omitempty" bson:"twitter_url,omitempty"`
	FacebookURL  string    `json:"facebook_url,omitempty" bson:"facebook_url,omitempty"`
	InstagramURL string    `json:"instagram_url,omitempty" bson:"instagram_url,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// ProfileSeed carries the sign-up metadata the backend uses to provision the profile row.
type ProfileSeed struct {
	FullName string
	Username string
}

// Metadata renders the seed as auxiliary user metadata for the sign-up call.
func (s ProfileSeed) Metadata() map[string]any {
	md := make(map[string]any, 2)
	if s.FullName != "" {
		md["full_name"] = s.FullName
	}
	if s.Username != "" {
		md["username"] = s.Username
	}
	return md
}

// ProfileUpdate lists the profile columns a caller may change. Nil fields are left as is.
type ProfileUpdate struct {
	FullName     *string
	Username     *string
	AvatarURL    *string
	Phone        *string
	LinkedinURL  *string
	TwitterURL   *string
	FacebookURL  *string
	InstagramURL *string
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FullName == nil && u.Username == nil && u.AvatarURL == nil && u.Phone == nil &&
		u.LinkedinURL == nil && u.TwitterURL == nil && u.FacebookURL == nil && u.InstagramURL == nil
}
