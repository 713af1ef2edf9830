// Package session keeps the signed-in representative's state in Redis: the
// identity from the backend login, the day-route bookkeeping, and the last
// successful sync time. The node serves a single representative at a time.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/falconrep/falconrep/internal/platform/httpx"
)

const (
	sessionKey  = "falconrep:session"
	dayRouteKey = "falconrep:dayroute"
	lastSyncKey = "falconrep:lastsync"
)

// RepSession is the signed-in representative.
type RepSession struct {
	SessionID  string    `json:"session_id"`
	RepID      int64     `json:"rep_id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

// DayRoute is the state of the current working day.
type DayRoute struct {
	RouteID    int64  `json:"route_id"`
	RouteName  string `json:"route_name"`
	RouteDate  string `json:"route_date"`
	MeterStart int64  `json:"meter_start"`
	MeterEnd   int64  `json:"meter_end"`
	Ended      bool   `json:"ended"`
}

// Store persists the representative session in Redis.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore constructs a session store.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// SignIn records the representative identity returned by the backend and
// returns the assigned session id.
func (s *Store) SignIn(ctx context.Context, repID int64, username, fullName string) (*RepSession, error) {
	sess := RepSession{
		SessionID:  uuid.NewString(),
		RepID:      repID,
		Username:   username,
		FullName:   fullName,
		LoggedInAt: time.Now().UTC(),
	}
	if err := s.setJSON(ctx, sessionKey, sess); err != nil {
		return nil, fmt.Errorf("session: sign in: %w", err)
	}
	return &sess, nil
}

// Current returns the signed-in representative, or ErrUnauthorized when no
// session exists.
func (s *Store) Current(ctx context.Context) (*RepSession, error) {
	var sess RepSession
	err := s.getJSON(ctx, sessionKey, &sess)
	if errors.Is(err, redis.Nil) {
		return nil, httpx.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	return &sess, nil
}

// SignOut drops the session together with day-route state.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.rdb.Del(ctx, sessionKey, dayRouteKey).Err(); err != nil {
		return fmt.Errorf("session: sign out: %w", err)
	}
	return nil
}

// StartDay records the selected route and the vehicle's starting meter.
func (s *Store) StartDay(ctx context.Context, routeID int64, routeName string, meterStart int64) error {
	day := DayRoute{
		RouteID:    routeID,
		RouteName:  routeName,
		RouteDate:  time.Now().Format("2006-01-02"),
		MeterStart: meterStart,
	}
	if err := s.setJSON(ctx, dayRouteKey, day); err != nil {
		return fmt.Errorf("session: start day: %w", err)
	}
	return nil
}

// EndDay records the closing meter. The day-route state stays until the
// daily upload clears it.
func (s *Store) EndDay(ctx context.Context, meterEnd int64) error {
	day, err := s.Day(ctx)
	if err != nil {
		return err
	}
	if day == nil {
		return fmt.Errorf("%w: no day started", httpx.ErrValidation)
	}
	day.MeterEnd = meterEnd
	day.Ended = true
	if err := s.setJSON(ctx, dayRouteKey, *day); err != nil {
		return fmt.Errorf("session: end day: %w", err)
	}
	return nil
}

// Day returns the current day-route state, or nil when no day was started.
func (s *Store) Day(ctx context.Context) (*DayRoute, error) {
	var day DayRoute
	err := s.getJSON(ctx, dayRouteKey, &day)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load day: %w", err)
	}
	return &day, nil
}

// ClearDay drops the day-route state after a successful daily upload.
func (s *Store) ClearDay(ctx context.Context) error {
	if err := s.rdb.Del(ctx, dayRouteKey).Err(); err != nil {
		return fmt.Errorf("session: clear day: %w", err)
	}
	return nil
}

// SetLastSync records when the catalog sync last completed.
func (s *Store) SetLastSync(ctx context.Context, at time.Time) error {
	if err := s.rdb.Set(ctx, lastSyncKey, at.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("session: set last sync: %w", err)
	}
	return nil
}

// LastSync returns the last successful sync time; the zero time when the
// catalog was never synced.
func (s *Store) LastSync(ctx context.Context) (time.Time, error) {
	raw, err := s.rdb.Get(ctx, lastSyncKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("session: last sync: %w", err)
	}
	return time.Parse(time.RFC3339, raw)
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, data, s.ttl).Err()
}

func (s *Store) getJSON(ctx context.Context, key string, target any) error {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
