package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// ParseRole normalizes a client supplied role. Empty input defaults to USER.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// HomePath is the landing area for an authenticated user of this role.
func (r Role) HomePath() string {
	if r == RoleAdmin {
		return "/admin"
	}
	return "/booking"
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	PhoneNumber  string    `json:"phoneNumber"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile strips the password hash.
func (u User) Profile() UserProfile {
	return UserProfile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type UserProfile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type AuthClaims struct {
	UserID string
	Email  string
	Role   Role
	Name   string
}

type LoginResult struct {
	User  UserProfile `json:"user"`
	Token string      `json:"token"`
}

type RegisterResult struct {
	User        UserProfile `json:"user"`
	Token       string      `json:"token"`
	RedirectURL string      `json:"redirectUrl"`
}

type ProfileUpdateResult struct {
	User UserProfile `json:"user"`
	// Token is set only when the email changed and the session was reissued.
	Token string `json:"token,omitempty"`
}

type MeResult struct {
	User            UserProfile `json:"user"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

type LogoutResult struct {
	RedirectURL string `json:"redirectUrl"`
}
