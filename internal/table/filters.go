// AngelaMos | 2026
// filters.go

package table

import (
	"cmp"
	"strings"
	"time"
)

const DayLayout = "2006-01-02"

// MatchAny builds a search predicate that passes when any field contains the
// query, ignoring case.
func MatchAny[T any](fields ...func(T) string) func(T, string) bool {
	return func(row T, query string) bool {
		q := strings.ToLower(query)
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f(row)), q) {
				return true
			}
		}
		return false
	}
}

// InSet builds a categorical filter. The filter value is either a single V
// or a []V of accepted values; an empty set accepts every row.
func InSet[T any, V comparable](get func(T) V) func(T, any) bool {
	return func(row T, value any) bool {
		got := get(row)
		switch want := value.(type) {
		case V:
			return got == want
		case []V:
			if len(want) == 0 {
				return true
			}
			for _, v := range want {
				if got == v {
					return true
				}
			}
			return false
		default:
			return false
		}
	}
}

// SameDay builds a date-equality filter. Both the row's time and the target
// are truncated to the calendar day in loc before comparing. The filter
// value is a time.Time or a string in DayLayout.
func SameDay[T any](get func(T) time.Time, loc *time.Location) func(T, any) bool {
	if loc == nil {
		loc = time.UTC
	}
	return func(row T, value any) bool {
		var target time.Time
		switch v := value.(type) {
		case time.Time:
			target = v
		case string:
			t, err := time.ParseInLocation(DayLayout, v, loc)
			if err != nil {
				return false
			}
			target = t
		default:
			return false
		}

		got := get(row)
		if got.IsZero() {
			return false
		}
		return got.In(loc).Format(DayLayout) == target.In(loc).Format(DayLayout)
	}
}

func Ordered[T any, V cmp.Ordered](get func(T) V) func(a, b T) int {
	return func(a, b T) int {
		return cmp.Compare(get(a), get(b))
	}
}

// Text compares strings case-insensitively.
func Text[T any](get func(T) string) func(a, b T) int {
	return func(a, b T) int {
		return cmp.Compare(strings.ToLower(get(a)), strings.ToLower(get(b)))
	}
}

func Time[T any](get func(T) time.Time) func(a, b T) int {
	return func(a, b T) int {
		return get(a).Compare(get(b))
	}
}
