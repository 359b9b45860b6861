package domain

import "time"

// Account is a registered user credential record. PasswordHash is the bcrypt
// digest of the password and must never leave this service.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	AvatarURL    string
	IsActive     bool
	CreatedAt    time.Time
}

// Public is the projection of an Account that is safe to return to clients.
type Public struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Public strips the credential material from the account.
func (a *Account) Public() Public {
	return Public{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		AvatarURL: a.AvatarURL,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
	}
}
