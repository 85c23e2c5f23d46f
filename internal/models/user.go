package models

// RegisterRequest is the body of POST /api/auth/register. ConfirmPassword is
// checked against Password and never stored.
type RegisterRequest struct {
	Name            string `json:"name" form:"name" validate:"required,fullname"`
	Email           string `json:"email" form:"email" validate:"required,email,max=255"`
	Password        string `json:"password" form:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// Envelope is the opaque response shape of the auth endpoints.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type LoginResponse struct {
	Success   bool         `json:"success"`
	Token     string       `json:"token"`
	User      UserResponse `json:"user"`
	ExpiresAt string       `json:"expires_at"`
}

type SessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *UserResponse `json:"user,omitempty"`
}
