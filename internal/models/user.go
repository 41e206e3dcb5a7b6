package models

// User is the identity/profile record owned by the backend. This application only reads it.
type User struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Company       *string `json:"company,omitempty"`
	IsStudent     bool    `json:"is_student"`
	EmailVerified bool    `json:"emailVerified"`
	Role          string  `json:"role,omitempty"`
	Image         string  `json:"image,omitempty"`
}

// DisplayName returns the user's full name, falling back to their email.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}
