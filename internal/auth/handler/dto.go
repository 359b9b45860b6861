package handler

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse confirms account creation. No tokens: the client logs in separately.
type RegisterResponse struct {
	Message string      `json:"message"`
	User    UserPayload `json:"user"`
}

// LoginRequest is the body of POST /api/auth/login. Identifier is the email
// or username; device labels are optional.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest is the body of POST /api/auth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutResponse acknowledges a logout.
type LogoutResponse struct {
	Message string `json:"message"`
}

// TokenPairResponse is the outcome of login and refresh.
type TokenPairResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserPayload `json:"user"`
}

// UserPayload is the account projection embedded in auth responses.
type UserPayload struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// MeResponse is the body of GET /api/auth/me.
type MeResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}
