package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/ruesquiz/internal/auth"
	"github.com/susu3304/ruesquiz/internal/daily"
	"github.com/susu3304/ruesquiz/internal/daily/dailytest"
	"github.com/susu3304/ruesquiz/internal/dataset"
	"github.com/susu3304/ruesquiz/internal/geo"
)

var testUser = &auth.User{ID: uuid.MustParse("5c7a3e2f-9b1d-4f8e-a6c2-0d4b7e9f1a23"), Username: "canebiere13"}

type fakeAuth map[string]*auth.User

func (f fakeAuth) Authenticate(ctx context.Context, token string) (*auth.User, error) {
	if user, ok := f[token]; ok {
		return user, nil
	}
	return nil, auth.ErrInvalidToken
}

type profileRecorder struct {
	names map[uuid.UUID]string
}

func (p *profileRecorder) UpsertProfile(ctx context.Context, userID uuid.UUID, username string) error {
	p.names[userID] = username
	return nil
}

type fixture struct {
	service  *daily.Service
	store    *dailytest.Store
	profiles *profileRecorder
	handler  http.Handler
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	fc := &geo.FeatureCollection{Features: []geo.Feature{
		{Properties: map[string]any{"name": "Rue Exemple"}, Geometry: geo.LineString{{5.370, 43.300}, {5.380, 43.300}}},
		{Properties: map[string]any{"name": "Rue Exemple"}, Geometry: geo.LineString{{5.370, 43.310}, {5.371, 43.310}}},
	}}
	data := dataset.NewStore(func(ctx context.Context) (*dataset.Streets, error) {
		return dataset.BuildStreets(fc), nil
	}, func(ctx context.Context) ([]geo.Polygon, error) {
		return nil, nil
	}, 0)

	store := dailytest.NewStore()
	service := daily.NewService(store, data, "s", daily.WithClock(func() time.Time {
		return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	}))

	profiles := &profileRecorder{names: make(map[uuid.UUID]string)}
	if opts.Profiles == nil {
		opts.Profiles = profiles
	}
	api := New(service, fakeAuth{"good": testUser}, opts)
	return &fixture{service: service, store: store, profiles: profiles, handler: api.Handler()}
}

func (f *fixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestAttemptSolved(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do("POST", "/api/daily/attempt", "good", `{"click_lat": 43.300, "click_lng": 5.375, "input_type": "click"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decode(t, w)
	assert.Equal(t, true, body["playable"])
	assert.Equal(t, true, body["solved"])
	assert.Equal(t, 1.0, body["attempts_used"])
	assert.Equal(t, 4.0, body["attempts_left"])
	assert.Equal(t, 0.0, body["distance_meters"])
	assert.Equal(t, "2024-01-01T10:00:00Z", body["solved_at"])
	assert.NotContains(t, body, "message")

	assert.Equal(t, "canebiere13", f.profiles.names[testUser.ID])
}

func TestAttemptNotPlayable(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do("POST", "/api/daily/attempt", "good", `{"click_lat": 48.85, "click_lng": 2.35}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["playable"])
	assert.Nil(t, body["attempts_used"])
	assert.Nil(t, body["distance_meters"])
	assert.Equal(t, 5.0, body["attempts_left"])
	assert.Equal(t, "Click hors zone jouable.", body["message"])
	assert.Equal(t, 0, f.store.Writes)
}

func TestAttemptRequestValidation(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "not json", body: `{click`, want: "Invalid JSON body."},
		{name: "missing lng", body: `{"click_lat": 43.3}`, want: "click_lat and click_lng are required."},
		{name: "string coordinate", body: `{"click_lat": "43.3", "click_lng": 5.3}`, want: "Invalid JSON body."},
		{name: "null coordinate", body: `{"click_lat": null, "click_lng": 5.3}`, want: "click_lat and click_lng are required."},
		{name: "input type too long", body: `{"click_lat": 43.3, "click_lng": 5.3, "input_type": "aaaaaaaaaaaaaaaaa"}`, want: "input_type is invalid."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do("POST", "/api/daily/attempt", "good", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["error"])
		})
	}
	assert.Equal(t, 0, f.store.Writes)
}

func TestAttemptOutOfRangeIsNotPlayable(t *testing.T) {
	f := newFixture(t, Options{})

	for _, body := range []string{
		`{"click_lat": 143.3, "click_lng": 5.3}`,
		`{"click_lat": 43.3, "click_lng": -200}`,
	} {
		w := f.do("POST", "/api/daily/attempt", "good", body)
		require.Equal(t, http.StatusOK, w.Code, body)
		got := decode(t, w)
		assert.Equal(t, false, got["playable"])
		assert.Equal(t, "Click hors zone jouable.", got["message"])
	}
	assert.Equal(t, 0, f.store.Writes)
}

type countingAuth struct {
	fakeAuth
	calls int
}

func (c *countingAuth) Authenticate(ctx context.Context, token string) (*auth.User, error) {
	c.calls++
	return c.fakeAuth.Authenticate(ctx, token)
}

func TestAttemptValidatesBeforeAuthentication(t *testing.T) {
	counter := &countingAuth{fakeAuth: fakeAuth{"good": testUser}}
	f := newFixture(t, Options{})
	f.handler = New(f.service, counter, Options{}).Handler()

	tests := []struct {
		name      string
		token     string
		body      string
		wantCode  int
		wantError string
		wantCalls int
	}{
		{name: "no token bad json", token: "", body: `{click`, wantCode: http.StatusBadRequest, wantError: "Invalid JSON body."},
		{name: "good token bad json", token: "good", body: `{"click_lat":"nope"}`, wantCode: http.StatusBadRequest, wantError: "Invalid JSON body."},
		{name: "no token missing field", token: "", body: `{"click_lat": 43.3}`, wantCode: http.StatusBadRequest, wantError: "click_lat and click_lng are required."},
		{name: "no token valid body", token: "", body: `{"click_lat": 43.3, "click_lng": 5.375}`, wantCode: http.StatusUnauthorized, wantError: "Authentication required."},
		{name: "bad token valid body", token: "expired", body: `{"click_lat": 43.3, "click_lng": 5.375}`, wantCode: http.StatusUnauthorized, wantError: "Authentication required.", wantCalls: 1},
		{name: "good token valid body", token: "good", body: `{"click_lat": 43.3, "click_lng": 5.375}`, wantCode: http.StatusOK, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter.calls = 0
			w := f.do("POST", "/api/daily/attempt", tt.token, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decode(t, w)["error"])
			}
			assert.Equal(t, tt.wantCalls, counter.calls)
		})
	}
	assert.Equal(t, 1, f.store.Writes)
}

func TestStatusWithoutUserIsUnauthorized(t *testing.T) {
	f := newFixture(t, Options{})
	api := New(f.service, fakeAuth{}, Options{})

	w := httptest.NewRecorder()
	api.handleStatus(w, httptest.NewRequest("GET", "/api/daily/status", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authentication required.", decode(t, w)["error"])
}

func TestAuthenticationRequired(t *testing.T) {
	f := newFixture(t, Options{})

	for _, token := range []string{"", "expired"} {
		w := f.do("POST", "/api/daily/attempt", token, `{"click_lat": 43.3, "click_lng": 5.375}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Authentication required.", decode(t, w)["error"])

		w = f.do("GET", "/api/daily/status", token, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, Options{})

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/daily/attempt"},
		{"POST", "/api/daily/status"},
		{"DELETE", "/api/daily/leaderboard"},
	} {
		w := f.do(tc.method, tc.path, "good", "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "Method not allowed.", decode(t, w)["error"])
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.Put(daily.Attempt{UserID: testUser.ID, Date: "2024-01-01", TargetKey: "rue exemple", AttemptsUsed: 2})

	w := f.do("GET", "/api/daily/status", "good", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "2024-01-01", body["date"])
	assert.Equal(t, 2.0, body["attempts_used"])
	assert.Equal(t, 5.0, body["max_attempts"])
	assert.Equal(t, false, body["solved"])
	assert.Nil(t, body["solved_at"])
	assert.Equal(t, 0.0, body["streak"])
}

func TestStoreFailureIsGeneric(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.Err = errors.New("pq: relation does not exist")

	w := f.do("POST", "/api/daily/attempt", "good", `{"click_lat": 43.3, "click_lng": 5.375}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Unable to record daily attempt.", decode(t, w)["error"])

	w = f.do("GET", "/api/daily/status", "good", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Unable to load daily status.", decode(t, w)["error"])

	w = f.do("GET", "/api/daily/leaderboard", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Unable to load daily leaderboard.", decode(t, w)["error"])
}

func TestLeaderboardEndpoint(t *testing.T) {
	f := newFixture(t, Options{})
	solvedAt := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	other := uuid.New()
	f.store.Put(daily.Attempt{UserID: other, Date: "2024-01-01", AttemptsUsed: 4})
	f.store.Put(daily.Attempt{UserID: testUser.ID, Date: "2024-01-01", AttemptsUsed: 3, Solved: true, SolvedAt: &solvedAt})
	f.store.SetUsername(other, "vieuxport")
	f.store.SetUsername(testUser.ID, "canebiere13")

	w := f.do("GET", "/api/daily/leaderboard?limit=10", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var board daily.Leaderboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	assert.Equal(t, "2024-01-01", board.Date)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "canebiere13", board.Entries[0].Username)
	assert.Equal(t, "vieuxport", board.Entries[1].Username)

	w = f.do("GET", "/api/daily/leaderboard?date=2023-06-01", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"date":"2023-06-01","entries":[]}`, w.Body.String())

	w = f.do("GET", "/api/daily/leaderboard?date=01/06/2023", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do("GET", "/api/daily/leaderboard?limit=ten", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttemptRateLimit(t *testing.T) {
	f := newFixture(t, Options{AttemptsPerMinute: 2})
	miss := `{"click_lat": 43.305, "click_lng": 5.375}`

	assert.Equal(t, http.StatusOK, f.do("POST", "/api/daily/attempt", "good", miss).Code)
	assert.Equal(t, http.StatusOK, f.do("POST", "/api/daily/attempt", "good", miss).Code)

	w := f.do("POST", "/api/daily/attempt", "good", miss)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, 2, f.store.Writes)
}

func TestLimiterPrune(t *testing.T) {
	set := newLimiterSet(5)
	id := uuid.New()
	assert.True(t, set.allow(id))
	assert.Equal(t, 0, set.prune(time.Hour))

	set.limiters[id].lastAccess = time.Now().Add(-2 * time.Hour)
	assert.Equal(t, 1, set.prune(time.Hour))
	assert.Empty(t, set.limiters)

	unlimited := newLimiterSet(0)
	for i := 0; i < 100; i++ {
		assert.True(t, unlimited.allow(id))
	}
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(ctx context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	w := newFixture(t, Options{}).do("GET", "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = newFixture(t, Options{Health: failingPinger{err: errors.New("down")}}).do("GET", "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, Options{})
	f.do("GET", "/healthz", "", "")

	w := f.do("GET", "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ruesquiz_http_request_duration_seconds")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, Options{AllowedOrigins: []string{"https://ruesquiz.fr"}})

	req := httptest.NewRequest("OPTIONS", "/api/daily/attempt", nil)
	req.Header.Set("Origin", "https://ruesquiz.fr")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, "https://ruesquiz.fr", w.Header().Get("Access-Control-Allow-Origin"))
}
