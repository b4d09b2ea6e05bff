package dto

import "time"

// UserResponseDTO is returned in API responses
type UserResponseDTO struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserProfileResponseDTO bundles the profile with the usage snapshot
type UserProfileResponseDTO struct {
	User  UserResponseDTO  `json:"user"`
	Usage UsageResponseDTO `json:"usage"`
}

// UserUpdateDTO is used for incoming profile update requests
type UserUpdateDTO struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

// PlanUpgradeDTO is used for incoming plan change requests
type PlanUpgradeDTO struct {
	Plan string `json:"plan" validate:"required"`
}

// SignUpRequestDTO is used for incoming signup requests; identity comes
// from the verified token, the body may override the display name.
type SignUpRequestDTO struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

// SessionRequestDTO carries the identity provider token to exchange for a
// session cookie.
type SessionRequestDTO struct {
	Token string `json:"token"`
}

// SessionResponseDTO is returned after minting a session
type SessionResponseDTO struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}
