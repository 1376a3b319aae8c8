// Package calendar keeps local tasks and an external calendar in step:
// watch channels, push notifications, incremental sync and write-back.
package calendar

import (
	"context"
	"errors"
	"time"
)

// SyncToken resumes an incremental listing. It is only handed out on the
// last page of a traversal.
type SyncToken string

// PageToken continues a listing within one traversal.
type PageToken string

// OrderByStartTime orders a full listing by event start.
const OrderByStartTime = "startTime"

// ErrSyncTokenInvalid is returned by ListEvents when the provider no longer
// accepts the sync token and a full resync is required.
var ErrSyncTokenInvalid = errors.New("calendar: sync token invalid")

type ListEventsRequest struct {
	CalendarID string
	SyncToken  SyncToken
	PageToken  PageToken
	// TimeMin and OrderBy apply to full listings only.
	TimeMin      time.Time
	OrderBy      string
	ShowDeleted  bool
	SingleEvents bool
}

type Event struct {
	ID          string
	ICalUID     string
	Status      string
	Summary     string
	Description string
	Start       *time.Time
	End         *time.Time
	AllDay      bool
}

// Cancelled reports whether the event was deleted on the provider side.
func (e Event) Cancelled() bool {
	return e.Status == "cancelled"
}

type EventPage struct {
	Items         []Event
	NextPageToken PageToken
	NextSyncToken SyncToken
}

type WatchRequest struct {
	CalendarID string
	ChannelID  string
	WebhookURL string
	Expiration time.Time
}

type WatchResponse struct {
	ResourceID string
	Expiration time.Time
}

type StopRequest struct {
	ChannelID  string
	ResourceID string
}

// EventInput is what write-back sends for a scheduled task.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Provider is one user's authorized calendar client.
type Provider interface {
	ListEvents(ctx context.Context, req ListEventsRequest) (EventPage, error)
	Watch(ctx context.Context, req WatchRequest) (WatchResponse, error)
	// StopWatch treats an unknown channel as already stopped.
	StopWatch(ctx context.Context, req StopRequest) error
	InsertEvent(ctx context.Context, calendarID string, in EventInput) (Event, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, in EventInput) (Event, error)
	// DeleteEvent treats a missing event as already deleted.
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// ProviderFactory returns a user's provider or an apperr.NotConnected error
// when the user has not linked a calendar account.
type ProviderFactory interface {
	ForUser(ctx context.Context, userID uint) (Provider, error)
}
