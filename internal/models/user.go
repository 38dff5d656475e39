package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// ParseRole accepts the canonical role names and the legacy "tech" alias.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "technician", "tech":
		return RoleTechnician, true
	case "admin":
		return RoleAdmin, true
	default:
		return "", false
	}
}

type User struct {
	Username     string    `gorm:"type:varchar(100);primaryKey" json:"username"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null;default:'technician'" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
