package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories groups the repositories bound to one *gorm.DB handle.
type Repositories struct {
	Users          *UserRepository
	Tasks          *TaskRepository
	DailyPlans     *DailyPlanRepository
	SyncStates     *SyncStateRepository
	CalendarEvents *CalendarEventRepository
	Tokens         *TokenRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:          NewUserRepository(db),
		Tasks:          NewTaskRepository(db),
		DailyPlans:     NewDailyPlanRepository(db),
		SyncStates:     NewSyncStateRepository(db),
		CalendarEvents: NewCalendarEventRepository(db),
		Tokens:         NewTokenRepository(db),
	}
}

// Transactor runs a callback inside one database transaction. The callback
// receives repositories bound to the transaction; returning an error rolls back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error
}

type GormTransactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

func (t *GormTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRepositories(tx))
	})
}
