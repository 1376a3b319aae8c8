package model

import "time"

// ProviderGoogle identifies Google Calendar in join rows and tokens.
const ProviderGoogle = "google"

// GoogleSyncState tracks a calendar watch channel and its incremental sync cursor.
// Channel fields are nil when no watch is active; SyncToken survives a stop.
type GoogleSyncState struct {
	ID         uint       `gorm:"primaryKey"`
	UserID     uint       `gorm:"uniqueIndex:idx_sync_state_user_calendar;not null"`
	CalendarID string     `gorm:"uniqueIndex:idx_sync_state_user_calendar;not null"`
	ChannelID  *string    `gorm:"index:idx_sync_state_channel"`
	ResourceID *string    `gorm:"index:idx_sync_state_channel"`
	Expiration *time.Time `gorm:"index"`
	SyncToken  *string
	LastSyncAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Active reports whether the watch channel is registered and not yet expired at now.
func (s GoogleSyncState) Active(now time.Time) bool {
	return s.ChannelID != nil && s.Expiration != nil && s.Expiration.After(now)
}

// CalendarEvent binds a task to an external calendar event.
type CalendarEvent struct {
	ID         uint   `gorm:"primaryKey"`
	TaskID     uint   `gorm:"index;not null"`
	UserID     uint   `gorm:"uniqueIndex:idx_calendar_event_external,priority:1;not null"`
	Provider   string `gorm:"uniqueIndex:idx_calendar_event_external,priority:2;not null"`
	ExternalID string `gorm:"uniqueIndex:idx_calendar_event_external,priority:3;not null"`
	CalendarID string
	ICalUID    string `gorm:"column:ical_uid"`
	StartAt    *time.Time
	EndAt      *time.Time
	LastSynced time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IntegrationToken is an already-authorized provider credential for a user.
type IntegrationToken struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"uniqueIndex:idx_token_user_provider;not null"`
	Provider     string `gorm:"uniqueIndex:idx_token_user_provider;not null"`
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
