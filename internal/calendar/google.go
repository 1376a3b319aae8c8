package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
	"dailyplan/internal/queue"
	"dailyplan/internal/repository"
)

const requestTimeout = 30 * time.Second

// GoogleFactory builds Google Calendar clients from stored integration tokens.
// Refreshed access tokens are written back to the token repository.
type GoogleFactory struct {
	tokens *repository.TokenRepository
	oauth  *oauth2.Config
	logger *zap.Logger
}

func NewGoogleFactory(tokens *repository.TokenRepository, clientID, clientSecret string, logger *zap.Logger) *GoogleFactory {
	return &GoogleFactory{
		tokens: tokens,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcal.CalendarScope},
		},
		logger: logger,
	}
}

func (f *GoogleFactory) ForUser(ctx context.Context, userID uint) (Provider, error) {
	stored, err := f.tokens.Find(ctx, userID, model.ProviderGoogle)
	if err != nil {
		return nil, err
	}
	if stored == nil || (stored.AccessToken == "" && stored.RefreshToken == "") {
		return nil, apperr.NotConnected("google calendar", model.ProviderGoogle)
	}

	tok := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
	}
	if stored.Expiry != nil {
		tok.Expiry = *stored.Expiry
	}
	src := &persistingTokenSource{
		base:   f.oauth.TokenSource(context.Background(), tok),
		last:   tok.AccessToken,
		stored: *stored,
		tokens: f.tokens,
		logger: f.logger,
	}

	client := oauth2.NewClient(context.Background(), src)
	client.Timeout = requestTimeout
	svc, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &googleCalendar{svc: svc}, nil
}

type persistingTokenSource struct {
	base   oauth2.TokenSource
	tokens *repository.TokenRepository
	logger *zap.Logger

	mu     sync.Mutex
	last   string
	stored model.IntegrationToken
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}
	s.last = tok.AccessToken
	s.stored.AccessToken = tok.AccessToken
	s.stored.TokenType = tok.TokenType
	if tok.RefreshToken != "" {
		s.stored.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		s.stored.Expiry = &expiry
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tokens.Save(ctx, &s.stored); err != nil {
		s.logger.Warn("refreshed google token not stored", zap.Uint("user_id", s.stored.UserID), zap.Error(err))
	}
	return tok, nil
}

type googleCalendar struct {
	svc *gcal.Service
}

func (g *googleCalendar) ListEvents(ctx context.Context, req ListEventsRequest) (EventPage, error) {
	call := g.svc.Events.List(req.CalendarID).
		Context(ctx).
		ShowDeleted(req.ShowDeleted).
		SingleEvents(req.SingleEvents)
	if req.SyncToken != "" {
		call = call.SyncToken(string(req.SyncToken))
	} else {
		if !req.TimeMin.IsZero() {
			call = call.TimeMin(req.TimeMin.Format(time.RFC3339))
		}
		if req.OrderBy != "" {
			call = call.OrderBy(req.OrderBy)
		}
	}
	if req.PageToken != "" {
		call = call.PageToken(string(req.PageToken))
	}

	resp, err := call.Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusGone {
			return EventPage{}, fmt.Errorf("%w: %v", ErrSyncTokenInvalid, err)
		}
		return EventPage{}, mapGoogleError("list events", err)
	}

	page := EventPage{
		Items:         make([]Event, 0, len(resp.Items)),
		NextPageToken: PageToken(resp.NextPageToken),
		NextSyncToken: SyncToken(resp.NextSyncToken),
	}
	for _, item := range resp.Items {
		page.Items = append(page.Items, fromGoogleEvent(item))
	}
	return page, nil
}

func (g *googleCalendar) Watch(ctx context.Context, req WatchRequest) (WatchResponse, error) {
	ch := &gcal.Channel{
		Id:         req.ChannelID,
		Type:       "web_hook",
		Address:    req.WebhookURL,
		Expiration: req.Expiration.UnixMilli(),
	}
	resp, err := g.svc.Events.Watch(req.CalendarID, ch).Context(ctx).Do()
	if err != nil {
		return WatchResponse{}, mapGoogleError("watch calendar", err)
	}
	out := WatchResponse{ResourceID: resp.ResourceId}
	if resp.Expiration > 0 {
		out.Expiration = time.UnixMilli(resp.Expiration).UTC()
	}
	return out, nil
}

func (g *googleCalendar) StopWatch(ctx context.Context, req StopRequest) error {
	err := g.svc.Channels.Stop(&gcal.Channel{Id: req.ChannelID, ResourceId: req.ResourceID}).Context(ctx).Do()
	if err == nil || isGoogleCode(err, http.StatusNotFound) {
		return nil
	}
	return mapGoogleError("stop watch", err)
}

func (g *googleCalendar) InsertEvent(ctx context.Context, calendarID string, in EventInput) (Event, error) {
	ev, err := g.svc.Events.Insert(calendarID, toGoogleEvent(in)).Context(ctx).Do()
	if err != nil {
		return Event{}, mapGoogleError("insert event", err)
	}
	return fromGoogleEvent(ev), nil
}

func (g *googleCalendar) PatchEvent(ctx context.Context, calendarID, eventID string, in EventInput) (Event, error) {
	ev, err := g.svc.Events.Patch(calendarID, eventID, toGoogleEvent(in)).Context(ctx).Do()
	if err != nil {
		return Event{}, mapGoogleError("patch event", err)
	}
	return fromGoogleEvent(ev), nil
}

func (g *googleCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := g.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if err == nil || isGoogleCode(err, http.StatusNotFound) || isGoogleCode(err, http.StatusGone) {
		return nil
	}
	return mapGoogleError("delete event", err)
}

func toGoogleEvent(in EventInput) *gcal.Event {
	return &gcal.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Start:       &gcal.EventDateTime{DateTime: in.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: in.End.Format(time.RFC3339)},
	}
}

func fromGoogleEvent(item *gcal.Event) Event {
	ev := Event{
		ID:          item.Id,
		ICalUID:     item.ICalUID,
		Status:      item.Status,
		Summary:     item.Summary,
		Description: item.Description,
	}
	ev.Start, ev.AllDay = parseEventTime(item.Start)
	ev.End, _ = parseEventTime(item.End)
	return ev
}

// parseEventTime reads a timed or all-day value. All-day dates come back at UTC midnight.
func parseEventTime(dt *gcal.EventDateTime) (*time.Time, bool) {
	if dt == nil {
		return nil, false
	}
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return &t, false
		}
	}
	if dt.Date != "" {
		if t, err := model.ParseDate(dt.Date); err == nil {
			return &t, true
		}
	}
	return nil, false
}

func isGoogleCode(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

// mapGoogleError sorts a client error into the apperr taxonomy.
func mapGoogleError(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return apperr.NotConnected(op, model.ProviderGoogle)
	}

	code := 0
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		code = gerr.Code
		switch code {
		case http.StatusUnauthorized:
			return apperr.NotConnected(op, model.ProviderGoogle)
		case http.StatusNotFound:
			return apperr.NotFound(op, "%s", gerr.Message)
		}
	}

	if retry, _ := queue.Classify(queue.ProviderGoogle, err); retry {
		return apperr.Transient(op, model.ProviderGoogle, code, err)
	}
	return apperr.Permanent(op, model.ProviderGoogle, code, err)
}
