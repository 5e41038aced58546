// Package dailytest provides an in-memory daily.Store for tests.
package dailytest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/susu3304/ruesquiz/internal/daily"
)

type rowKey struct {
	userID uuid.UUID
	date   string
}

// Store keeps attempts in memory with the same compare-and-swap rules as the SQL store.
type Store struct {
	mu        sync.Mutex
	rows      map[rowKey]daily.Attempt
	usernames map[uuid.UUID]string

	// Err, when set, is returned by every call.
	Err error
	// BeforeRecord runs inside RecordAttempt before the guard is evaluated,
	// so tests can slip in a competing write.
	BeforeRecord func()

	Writes int
}

func NewStore() *Store {
	return &Store{
		rows:      make(map[rowKey]daily.Attempt),
		usernames: make(map[uuid.UUID]string),
	}
}

// Put seeds a row directly.
func (s *Store) Put(a daily.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[rowKey{a.UserID, a.Date}] = a
}

func (s *Store) SetUsername(userID uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usernames[userID] = name
}

func (s *Store) GetAttempt(ctx context.Context, userID uuid.UUID, date string) (*daily.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	row, ok := s.rows[rowKey{userID, date}]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *Store) RecordAttempt(ctx context.Context, next daily.Attempt, expectedUsed int) (bool, error) {
	if hook := s.BeforeRecord; hook != nil {
		s.BeforeRecord = nil
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	key := rowKey{next.UserID, next.Date}
	current, exists := s.rows[key]
	switch {
	case !exists && expectedUsed != 0:
		return false, nil
	case exists && (current.Solved || current.AttemptsUsed != expectedUsed):
		return false, nil
	}
	s.rows[key] = next
	s.Writes++
	return true, nil
}

func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]daily.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var entries []daily.LeaderboardEntry
	for key, row := range s.rows {
		if key.date != date {
			continue
		}
		entries = append(entries, daily.LeaderboardEntry{
			Date:         row.Date,
			Username:     s.usernames[row.UserID],
			Solved:       row.Solved,
			AttemptsUsed: row.AttemptsUsed,
			SolvedAt:     row.SolvedAt,
		})
	}
	daily.SortEntries(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) SolvedDates(ctx context.Context, userID uuid.UUID, since string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var dates []string
	for key, row := range s.rows {
		if key.userID == userID && row.Solved && key.date >= since {
			dates = append(dates, key.date)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}
