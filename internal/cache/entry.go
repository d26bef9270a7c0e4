// AngelaMos | 2026
// entry.go

package cache

import (
	"time"
)

type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Entry is the observable state of one key. Value keeps the last successful
// data even while a refetch is pending or after a failed refetch.
type Entry struct {
	Key       Key
	Value     any
	HasValue  bool
	Err       error
	Status    Status
	Stale     bool
	UpdatedAt time.Time
}

type EventType int

const (
	EventUpdated EventType = iota
	EventInvalidated
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventInvalidated:
		return "invalidated"
	case EventRemoved:
		return "removed"
	default:
		return "updated"
	}
}

type Event struct {
	Type  EventType
	Entry Entry
}

type Listener func(Event)

type Stats struct {
	Entries     int `json:"entries"`
	Stale       int `json:"stale"`
	Subscribers int `json:"subscribers"`
	Suspended   int `json:"suspended"`
	Refetching  int `json:"refetching"`
}
