package model

import "time"

// User stores account metadata. TelegramID is set for users that talk to the bot.
type User struct {
	ID         uint   `gorm:"primaryKey"`
	TelegramID *int64 `gorm:"uniqueIndex"`
	Email      string `gorm:"index"`
	FirstName  string
	LastName   string
	Username   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserSettings holds per-user planning preferences.
type UserSettings struct {
	ID                   uint `gorm:"primaryKey"`
	UserID               uint `gorm:"uniqueIndex;not null"`
	DailyCapacityMinutes int
	DayStart             string // HH:MM, empty means the configured default
	Timezone             string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
