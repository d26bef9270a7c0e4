// AngelaMos | 2026
// entity.go

package user

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
	RoleGuest Role = "Guest"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser || r == RoleGuest
}

// BadgeVariant maps a role onto the presentation layer's badge style.
func (r Role) BadgeVariant() string {
	switch strings.ToLower(string(r)) {
	case "admin":
		return "destructive"
	case "user":
		return "default"
	case "guest":
		return "secondary"
	default:
		return "outline"
	}
}

const TempIDPrefix = "temp-"

type User struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	Bio         string    `json:"bio"`
	Avatar      string    `json:"avatar"`
	Role        Role      `json:"role"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// IsTemporary reports whether u is an optimistic placeholder that the
// server has not confirmed yet.
func (u User) IsTemporary() bool {
	return strings.HasPrefix(u.ID, TempIDPrefix)
}

const bioPreviewLength = 50

// BioPreview truncates the bio for table cells.
func (u User) BioPreview() string {
	runes := []rune(u.Bio)
	if len(runes) <= bioPreviewLength {
		return u.Bio
	}
	return string(runes[:bioPreviewLength]) + "..."
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name        *string `json:"name,omitempty"        validate:"omitnil,min=1"`
	Email       *string `json:"email,omitempty"       validate:"omitnil,email"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitnil,min=1"`
	Bio         *string `json:"bio,omitempty"         validate:"omitnil,max=500"`
	Avatar      *string `json:"avatar,omitempty"      validate:"omitnil,avatar"`
	Role        *Role   `json:"role,omitempty"        validate:"omitnil,oneof=Admin User Guest"`
	Active      *bool   `json:"active,omitempty"`
}

func (p Patch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Active != nil {
		u.Active = *p.Active
	}
	return u
}

func (p Patch) Empty() bool {
	return p == Patch{}
}
