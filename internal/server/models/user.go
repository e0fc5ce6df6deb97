// Package models defines server-side data models persisted in the database.
package models

import "time"

// AssetReference points at a media object in the asset store.
// ExternalID is what deletion needs; URL is what clients get.
type AssetReference struct {
	ExternalID string `json:"publicId"`
	URL        string `json:"url"`
}

// IsZero reports whether the reference is unset.
func (a AssetReference) IsZero() bool {
	return a.ExternalID == "" && a.URL == ""
}

// User is the account aggregate.
//
// PasswordHash and RefreshToken never leave the server: they are tagged out
// of JSON and are only populated when read with WithSecrets. RefreshToken
// is the single live refresh token, or "" when the user has none; it is
// written exclusively through the token service.
type User struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	FullName     string         `json:"fullName"`
	Avatar       AssetReference `json:"avatar"`
	CoverImage   AssetReference `json:"coverImage"`
	WatchHistory []string       `json:"watchHistory"`
	PasswordHash string         `json:"-"`
	RefreshToken string         `json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Projection selects which columns a read returns. Password hash and refresh
// token are always included or excluded together.
type Projection int

const (
	// Sanitized excludes the password hash and refresh token.
	Sanitized Projection = iota
	// WithSecrets includes them; only credential and token checks use it.
	WithSecrets
)

// ProfileUpdate lists optional field changes; nil fields are left alone.
type ProfileUpdate struct {
	FullName   *string
	Email      *string
	Avatar     *AssetReference
	CoverImage *AssetReference
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.FullName == nil && u.Email == nil && u.Avatar == nil && u.CoverImage == nil
}
