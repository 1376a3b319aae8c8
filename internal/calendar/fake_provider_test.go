package calendar

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/repository"
	"dailyplan/internal/testutil"
)

type fakeProvider struct {
	mu       sync.Mutex
	list     func(n int, req ListEventsRequest) (EventPage, error)
	requests []ListEventsRequest
	watches  []WatchRequest
	stops    []StopRequest
	stopErr  error
	inserted []EventInput
	patched  map[string]EventInput
	deleted  []string
	missing  map[string]bool
	nextID   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{patched: map[string]EventInput{}, missing: map[string]bool{}}
}

func (f *fakeProvider) ListEvents(_ context.Context, req ListEventsRequest) (EventPage, error) {
	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, req)
	list := f.list
	f.mu.Unlock()
	if list == nil {
		return EventPage{}, nil
	}
	return list(n, req)
}

func (f *fakeProvider) Watch(_ context.Context, req WatchRequest) (WatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watches = append(f.watches, req)
	return WatchResponse{ResourceID: "res-" + req.ChannelID, Expiration: req.Expiration}, nil
}

func (f *fakeProvider) StopWatch(_ context.Context, req StopRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, req)
	return f.stopErr
}

func (f *fakeProvider) InsertEvent(_ context.Context, _ string, in EventInput) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.inserted = append(f.inserted, in)
	start, end := in.Start, in.End
	return Event{ID: fmt.Sprintf("ev-%d", f.nextID), ICalUID: fmt.Sprintf("uid-%d", f.nextID), Summary: in.Summary, Start: &start, End: &end}, nil
}

func (f *fakeProvider) PatchEvent(_ context.Context, _ string, eventID string, in EventInput) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[eventID] {
		return Event{}, apperr.NotFound("patch event", "event %s gone", eventID)
	}
	f.patched[eventID] = in
	start, end := in.Start, in.End
	return Event{ID: eventID, Summary: in.Summary, Start: &start, End: &end}, nil
}

func (f *fakeProvider) DeleteEvent(_ context.Context, _ string, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, eventID)
	return nil
}

type fakeFactory struct {
	provider Provider
	calls    int
}

func (f *fakeFactory) ForUser(context.Context, uint) (Provider, error) {
	f.calls++
	if f.provider == nil {
		return nil, apperr.NotConnected("fake", model.ProviderGoogle)
	}
	return f.provider, nil
}

var testNow = time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)

type env struct {
	db       *gorm.DB
	repos    *repository.Repositories
	provider *fakeProvider
	factory  *fakeFactory
	syncer   *Syncer
	userID   uint
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	provider := newFakeProvider()
	factory := &fakeFactory{provider: provider}
	syncer := NewSyncer(factory, repos, repository.NewTransactor(db), NewLocalLocker(), zap.NewNop())
	syncer.now = func() time.Time { return testNow }
	user := testutil.CreateUser(t, db, "a@example.com")
	return &env{db: db, repos: repos, provider: provider, factory: factory, syncer: syncer, userID: user.ID}
}

func at(h, m int) *time.Time {
	t := time.Date(2025, 3, 16, h, m, 0, 0, time.UTC)
	return &t
}

func strPtr(s string) *string { return &s }
