// AngelaMos | 2026
// columns.go

package user

import (
	"slices"
	"time"

	"github.com/carterperez-dev/templates/user-admin/internal/table"
)

const (
	ColumnName      = "name"
	ColumnEmail     = "email"
	ColumnRole      = "role"
	ColumnActive    = "active"
	ColumnCreatedAt = "createdAt"
)

// NewTable defines the user table. Calendar-day filtering on createdAt uses
// loc as the reference zone.
func NewTable(loc *time.Location) *table.Table[User] {
	return &table.Table[User]{
		RowID: func(u User) string { return u.ID },
		Search: table.MatchAny(
			func(u User) string { return u.Name },
			func(u User) string { return u.Email },
		),
		Columns: []table.Column[User]{
			{
				ID:      ColumnName,
				Compare: table.Text(func(u User) string { return u.Name }),
			},
			{
				ID:      ColumnEmail,
				Compare: table.Text(func(u User) string { return u.Email }),
			},
			{
				ID:     ColumnRole,
				Filter: table.InSet(func(u User) Role { return u.Role }),
			},
			{
				ID:     ColumnActive,
				Filter: table.InSet(func(u User) bool { return u.Active }),
			},
			{
				ID:      ColumnCreatedAt,
				Filter:  table.SameDay(func(u User) time.Time { return u.CreatedAt }, loc),
				Compare: table.Time(func(u User) time.Time { return u.CreatedAt }),
			},
		},
	}
}

// Roles lists the distinct roles present in users, in first-seen order.
func Roles(users []User) []Role {
	roles := make([]Role, 0, 3)
	for _, u := range users {
		if !slices.Contains(roles, u.Role) {
			roles = append(roles, u.Role)
		}
	}
	return roles
}
