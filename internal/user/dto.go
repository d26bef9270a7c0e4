// AngelaMos | 2026
// dto.go

package user

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Form is the create/edit payload. Every field is validated before any
// cache write or network call.
type Form struct {
	Name        string `json:"name"        validate:"required,min=1"`
	Email       string `json:"email"       validate:"required,email"`
	PhoneNumber string `json:"phoneNumber" validate:"required,min=1"`
	Avatar      string `json:"avatar"      validate:"omitempty,avatar"`
	Role        Role   `json:"role"        validate:"required,oneof=Admin User Guest"`
	Active      *bool  `json:"active"      validate:"required"`
	Bio         string `json:"bio"         validate:"omitempty,max=500"`
}

// DefaultForm is the initial state of the create form. Fields missing from
// a decoded payload keep these values.
func DefaultForm() Form {
	active := true
	return Form{Active: &active}
}

func (f Form) User() User {
	u := User{
		Name:        strings.TrimSpace(f.Name),
		Email:       strings.TrimSpace(f.Email),
		PhoneNumber: strings.TrimSpace(f.PhoneNumber),
		Avatar:      f.Avatar,
		Role:        f.Role,
		Bio:         f.Bio,
	}
	if f.Active != nil {
		u.Active = *f.Active
	}
	return u
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type ListResponse struct {
	Items      []User   `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	Total      int      `json:"total"`
	Filtered   int      `json:"filtered"`
	TotalPages int      `json:"total_pages"`
	Selected   []string `json:"selected"`
	Roles      []Role   `json:"roles"`

	AllPageRowsSelected  bool `json:"all_page_rows_selected"`
	SomePageRowsSelected bool `json:"some_page_rows_selected"`
}

func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	//nolint:errcheck // tag name and func are static
	_ = v.RegisterValidation("avatar", validateAvatar)
	return v
}

func validateAvatar(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}
	if strings.HasPrefix(raw, "data:image/") {
		return true
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
