package model

// LoginRequest is the body sent to POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshTokenRequest is the body sent to POST /auth/refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is the backend's reply to both login and refresh. The backend
// rotates refresh tokens, so RefreshToken must always be present.
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
}

// Credentials is the durable credential record. All four fields are stored
// together; a record missing any of them is treated as absent.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"` // ms since epoch
	Username     string `json:"username"`
}

// Complete reports whether every field of the record is populated.
func (c Credentials) Complete() bool {
	return c.AccessToken != "" && c.RefreshToken != "" && c.ExpiresAt > 0 && c.Username != ""
}

// User is the in-memory projection of a credential record held by the
// session store and handed to subscribers.
type User struct {
	Username     string `json:"username"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"` // ms since epoch
}

// UserFromCredentials materializes the session view of a stored record.
func UserFromCredentials(c Credentials) *User {
	return &User{
		Username:     c.Username,
		Token:        c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
	}
}
