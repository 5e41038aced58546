package daily

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"
)

// DateLayout is the civil date format used for daily keys.
const DateLayout = "2006-01-02"

var (
	ErrMissingSecret = errors.New("daily target secret is not configured")
	ErrNoStreets     = errors.New("no streets available")
	ErrInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
)

// paris is the calendar every daily key is computed in; the day rolls over at Paris midnight.
var paris = mustLoadLocation("Europe/Paris")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// DateKey renders t as the Europe/Paris civil date.
func DateKey(t time.Time) string {
	return t.In(paris).Format(DateLayout)
}

// ParseDateKey validates a YYYY-MM-DD key and returns midnight of that day in Paris.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, key, paris)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, key)
	}
	return t, nil
}

// ShiftDateKey moves a date key by days calendar days.
func ShiftDateKey(key string, days int) (string, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, days).Format(DateLayout), nil
}

// SelectTargetKey picks the day's street among the sorted names.
// The first 32 bits of SHA-256("<secret>:<dateKey>") index into names, so every player
// gets the same street for a given secret, day and dataset.
func SelectTargetKey(secret, dateKey string, names []string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	if len(names) == 0 {
		return "", ErrNoStreets
	}
	sum := sha256.Sum256([]byte(secret + ":" + dateKey))
	seed := binary.BigEndian.Uint32(sum[:4])
	return names[seed%uint32(len(names))], nil
}

// TimeOfDay renders t as a Paris wall-clock HH:MM.
func TimeOfDay(t time.Time) string {
	return t.In(paris).Format("15:04")
}
