package models

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Password   string    `json:"-"`
	Role       UserRole  `json:"role"`
	Experience int64     `json:"experience"`
	LevelID    *int64    `json:"level_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DisplayName returns "FirstName L." format (first name + last initial).
func (u User) DisplayName() string {
	parts := strings.Fields(u.Name)
	if len(parts) <= 1 {
		return u.Name
	}
	lastName := []rune(parts[len(parts)-1])
	return parts[0] + " " + string(lastName[0]) + "."
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
