package daily

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/susu3304/ruesquiz/internal/dataset"
	"github.com/susu3304/ruesquiz/internal/geo"
	"github.com/susu3304/ruesquiz/internal/logger"
	"github.com/susu3304/ruesquiz/internal/metrics"
)

// MaxAttempts is the number of scored attempts a player gets per day.
const MaxAttempts = 5

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100
	// streakWindowDays bounds how far back Status looks for solved days.
	streakWindowDays = 366
)

const (
	MessageNotPlayable   = "Click hors zone jouable."
	MessageAlreadySolved = "Déjà résolu."
	MessageMaxAttempts   = "Nombre maximum de tentatives atteint."
	MessageConflict      = "Tentative concurrente déjà enregistrée, réessayez."
)

var ErrTargetUnavailable = errors.New("target geometry unavailable")

// Attempt is the persisted per-user, per-day row.
type Attempt struct {
	UserID       uuid.UUID
	Date         string
	TargetKey    string
	AttemptsUsed int
	Solved       bool
	SolvedAt     *time.Time
}

type LeaderboardEntry struct {
	Date         string     `json:"date"`
	Username     string     `json:"username"`
	Solved       bool       `json:"solved"`
	AttemptsUsed int        `json:"attempts_used"`
	SolvedAt     *time.Time `json:"solved_at"`
}

// Store persists daily attempts. RecordAttempt must be a single atomic write keyed on
// (user, date) that only applies when the stored row is unsolved and still holds
// expectedUsed attempts (0 when no row exists). It reports whether the write applied.
type Store interface {
	GetAttempt(ctx context.Context, userID uuid.UUID, date string) (*Attempt, error)
	RecordAttempt(ctx context.Context, next Attempt, expectedUsed int) (bool, error)
	Leaderboard(ctx context.Context, date string, limit int) ([]LeaderboardEntry, error)
	SolvedDates(ctx context.Context, userID uuid.UUID, since string) ([]string, error)
}

// Dataset provides the street index and the exclusion polygons.
type Dataset interface {
	Streets(ctx context.Context) (*dataset.Streets, error)
	Exclusions(ctx context.Context) ([]geo.Polygon, error)
}

type Service struct {
	store  Store
	data   Dataset
	secret string
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, data Dataset, secret string, opts ...Option) *Service {
	s := &Service{
		store:  store,
		data:   data,
		secret: secret,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current Paris date key.
func (s *Service) Today() string {
	return DateKey(s.now())
}

type AttemptInput struct {
	UserID    uuid.UUID
	Point     geo.LatLng
	InputType string
	UserAgent string
}

type AttemptResult struct {
	Playable       bool       `json:"playable"`
	Solved         bool       `json:"solved"`
	AttemptsUsed   *int       `json:"attempts_used"`
	AttemptsLeft   int        `json:"attempts_left"`
	DistanceMeters *int       `json:"distance_meters"`
	SolvedAt       *time.Time `json:"solved_at"`
	Message        string     `json:"message,omitempty"`
}

// Attempt scores one click against today's target and records it.
// Out-of-area clicks, already solved days and exhausted days are answered without any write.
func (s *Service) Attempt(ctx context.Context, in AttemptInput) (*AttemptResult, error) {
	now := s.now()
	dateKey := DateKey(now)

	streets, err := s.data.Streets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load streets: %w", err)
	}
	if len(streets.Names) == 0 {
		return nil, ErrNoStreets
	}
	exclusions, err := s.data.Exclusions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load exclusions: %w", err)
	}

	if !geo.IsPointInPlayableArea(in.Point, &streets.BBox, exclusions) {
		metrics.DailyAttempts.WithLabelValues("not_playable").Inc()
		return &AttemptResult{
			Playable:     false,
			AttemptsLeft: MaxAttempts,
			Message:      MessageNotPlayable,
		}, nil
	}

	targetKey, err := SelectTargetKey(s.secret, dateKey, streets.Names)
	if err != nil {
		return nil, err
	}
	target, ok := streets.IndexByName[targetKey]
	if !ok || len(target.Geometries) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrTargetUnavailable, targetKey)
	}

	distance := geo.MinDistance(in.Point, target.Geometries)
	if math.IsInf(distance, 0) || math.IsNaN(distance) {
		return nil, fmt.Errorf("%w: %q has no measurable geometry", ErrTargetUnavailable, targetKey)
	}
	rounded := int(math.Round(distance))

	inputType := DetectInputType(in.InputType, in.UserAgent)
	solved := distance <= ToleranceMeters(inputType)

	existing, err := s.store.GetAttempt(ctx, in.UserID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	if res, done := terminalResult(existing, rounded); done {
		return res, nil
	}

	used := 0
	if existing != nil {
		used = existing.AttemptsUsed
	}
	next := Attempt{
		UserID:       in.UserID,
		Date:         dateKey,
		TargetKey:    dataset.NormalizeName(target.Name),
		AttemptsUsed: used + 1,
		Solved:       solved,
	}
	if solved {
		stamp := now.UTC()
		next.SolvedAt = &stamp
	}

	applied, err := s.store.RecordAttempt(ctx, next, used)
	if err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}
	if !applied {
		return s.resolveConflict(ctx, in.UserID, dateKey, rounded)
	}

	res := &AttemptResult{
		Playable:     true,
		Solved:       solved,
		AttemptsUsed: intPtr(next.AttemptsUsed),
		AttemptsLeft: attemptsLeft(next.AttemptsUsed),
		SolvedAt:     next.SolvedAt,
	}
	if solved {
		res.DistanceMeters = intPtr(0)
		metrics.DailyAttempts.WithLabelValues("solved").Inc()
		logger.Debug("user %s solved %s in %d attempts (%s, %.1fm)", in.UserID, dateKey, next.AttemptsUsed, inputType, distance)
	} else {
		res.DistanceMeters = intPtr(rounded)
		metrics.DailyAttempts.WithLabelValues("missed").Inc()
	}
	return res, nil
}

// resolveConflict answers from stored state after a concurrent request won the write.
func (s *Service) resolveConflict(ctx context.Context, userID uuid.UUID, dateKey string, rounded int) (*AttemptResult, error) {
	current, err := s.store.GetAttempt(ctx, userID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("reload attempt: %w", err)
	}
	if res, done := terminalResult(current, rounded); done {
		return res, nil
	}
	metrics.DailyAttempts.WithLabelValues("conflict").Inc()
	logger.Warning("concurrent daily attempt for user %s on %s", userID, dateKey)

	used := 0
	if current != nil {
		used = current.AttemptsUsed
	}
	return &AttemptResult{
		Playable:       true,
		AttemptsUsed:   intPtr(used),
		AttemptsLeft:   attemptsLeft(used),
		DistanceMeters: intPtr(rounded),
		Message:        MessageConflict,
	}, nil
}

// terminalResult builds the answer for a day that can't take more attempts.
func terminalResult(row *Attempt, rounded int) (*AttemptResult, bool) {
	if row == nil {
		return nil, false
	}
	if row.Solved {
		metrics.DailyAttempts.WithLabelValues("already_solved").Inc()
		return &AttemptResult{
			Playable:       true,
			Solved:         true,
			AttemptsUsed:   intPtr(row.AttemptsUsed),
			AttemptsLeft:   attemptsLeft(row.AttemptsUsed),
			DistanceMeters: intPtr(0),
			SolvedAt:       row.SolvedAt,
			Message:        MessageAlreadySolved,
		}, true
	}
	if row.AttemptsUsed >= MaxAttempts {
		metrics.DailyAttempts.WithLabelValues("exhausted").Inc()
		return &AttemptResult{
			Playable:       true,
			Solved:         false,
			AttemptsUsed:   intPtr(row.AttemptsUsed),
			AttemptsLeft:   0,
			DistanceMeters: intPtr(rounded),
			Message:        MessageMaxAttempts,
		}, true
	}
	return nil, false
}

type Status struct {
	Date         string     `json:"date"`
	AttemptsUsed int        `json:"attempts_used"`
	MaxAttempts  int        `json:"max_attempts"`
	Solved       bool       `json:"solved"`
	SolvedAt     *time.Time `json:"solved_at"`
	Streak       int        `json:"streak"`
}

// Status reports the user's progress on today's challenge.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	dateKey := s.Today()
	row, err := s.store.GetAttempt(ctx, userID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("load attempt: %w", err)
	}

	status := &Status{
		Date:        dateKey,
		MaxAttempts: MaxAttempts,
	}
	if row != nil {
		status.AttemptsUsed = row.AttemptsUsed
		status.Solved = row.Solved
		status.SolvedAt = row.SolvedAt
	}

	since, err := ShiftDateKey(dateKey, -streakWindowDays)
	if err != nil {
		return nil, err
	}
	solvedDates, err := s.store.SolvedDates(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("load solved dates: %w", err)
	}
	status.Streak = ComputeStreak(dateKey, solvedDates)
	return status, nil
}

type Leaderboard struct {
	Date    string             `json:"date"`
	Entries []LeaderboardEntry `json:"entries"`
}

// Leaderboard lists a day's players, best first. An empty date means today.
// limit falls back to DefaultLeaderboardLimit when not positive and is capped at MaxLeaderboardLimit.
func (s *Service) Leaderboard(ctx context.Context, date string, limit int) (*Leaderboard, error) {
	if date == "" {
		date = s.Today()
	} else if _, err := ParseDateKey(date); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	entries, err := s.store.Leaderboard(ctx, date, limit)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	SortEntries(entries)
	return &Leaderboard{Date: date, Entries: entries}, nil
}

// SortEntries orders solvers first, then fewer attempts, then earlier solve time.
func SortEntries(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Solved != b.Solved {
			return a.Solved
		}
		if a.AttemptsUsed != b.AttemptsUsed {
			return a.AttemptsUsed < b.AttemptsUsed
		}
		switch {
		case a.SolvedAt == nil:
			return false
		case b.SolvedAt == nil:
			return true
		default:
			return a.SolvedAt.Before(*b.SolvedAt)
		}
	})
}

func attemptsLeft(used int) int {
	return max(0, MaxAttempts-used)
}

func intPtr(v int) *int {
	return &v
}
