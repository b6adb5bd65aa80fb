package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusInactive  UserStatus = "inactive"
	StatusSuspended UserStatus = "suspended"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
	MaxNameLength     = 64
)

type User struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	HashedPassword  string     `json:"-"`
	Status          UserStatus `json:"status"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type UserInfo struct {
	ID     uuid.UUID  `json:"id"`
	Email  string     `json:"email"`
	Name   string     `json:"name"`
	Status UserStatus `json:"status"`
}

// ToUserInfo converts User to UserInfo (without sensitive data)
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Status: u.Status,
	}
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

type RegistrationResult struct {
	Email     string
	Resent    bool
	ExpiresAt time.Time
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        *UserInfo `json:"user"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *RegisterRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.Name = strings.TrimSpace(r.Name)
}

func (r *RegisterRequest) Validate() error {
	switch {
	case r.Email == "":
		return invalid("email", "is required")
	case r.Name == "":
		return invalid("name", "is required")
	case r.Password == "":
		return invalid("password", "is required")
	}
	if !emailRegex.MatchString(r.Email) {
		return invalid("email", "invalid format")
	}
	if len([]rune(r.Name)) > MaxNameLength {
		return invalid("name", "is too long")
	}
	if len(r.Password) < MinPasswordLength {
		return invalid("password", "must be at least 8 characters")
	}
	// bcrypt silently truncates beyond 72 bytes
	if len(r.Password) > MaxPasswordLength {
		return invalid("password", "must be at most 72 bytes")
	}
	if r.ConfirmPassword != "" && r.ConfirmPassword != r.Password {
		return invalid("confirmPassword", "passwords do not match")
	}
	return nil
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return invalid("email", "is required")
	}
	if r.Password == "" {
		return invalid("password", "is required")
	}
	return nil
}
