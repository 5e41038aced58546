package dataset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/ruesquiz/internal/geo"
)

const streetsGeoJSON = `{
	"type": "FeatureCollection",
	"features": [
		{"type": "Feature", "properties": {"name": "  Rue de la République "},
		 "geometry": {"type": "LineString", "coordinates": [[5.370, 43.300], [5.372, 43.302]]}},
		{"type": "Feature", "properties": {"name": "rue de la république"},
		 "geometry": {"type": "LineString", "coordinates": [[5.373, 43.303], [5.375, 43.305]]}},
		{"type": "Feature", "properties": {"name": "Boulevard Longchamp"},
		 "geometry": {"type": "MultiLineString", "coordinates": [[[5.390, 43.304], [5.400, 43.307]]]}},
		{"type": "Feature", "properties": {"name": "Abbaye Saint-Victor"},
		 "geometry": {"type": "GeometryCollection", "geometries": [
			{"type": "Polygon", "coordinates": [[[5.365, 43.290], [5.366, 43.290], [5.366, 43.291], [5.365, 43.290]]]}
		 ]}},
		{"type": "Feature", "properties": {"name": "   "},
		 "geometry": {"type": "LineString", "coordinates": [[1.0, 1.0], [2.0, 2.0]]}},
		{"type": "Feature", "properties": {},
		 "geometry": {"type": "LineString", "coordinates": [[9.0, 9.0], [9.5, 9.5]]}}
	]
}`

const exclusionsGeoJSON = `{
	"type": "FeatureCollection",
	"features": [
		{"type": "Feature", "properties": {"zone": "port"},
		 "geometry": {"type": "MultiPolygon", "coordinates": [
			[[[5.35, 43.30], [5.36, 43.30], [5.36, 43.31], [5.35, 43.30]]],
			[[[5.34, 43.29], [5.35, 43.29], [5.35, 43.30], [5.34, 43.29]]]
		 ]}},
		{"type": "Feature", "properties": {"zone": "base"},
		 "geometry": {"type": "Polygon", "coordinates": [[[5.30, 43.20], [5.31, 43.20], [5.31, 43.21], [5.30, 43.20]]]}},
		{"type": "Feature", "properties": {"zone": "marker"},
		 "geometry": {"type": "Point", "coordinates": [5.3, 43.2]}}
	]
}`

func TestBuildStreets(t *testing.T) {
	srv := serveJSON(t, streetsGeoJSON)
	loader := NewLoader(srv.Client(), Sources{StreetsURL: srv.URL})

	streets, err := loader.LoadStreets(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"abbaye saint-victor", "boulevard longchamp", "rue de la république"}, streets.Names)

	rep, ok := streets.Lookup("RUE DE LA RÉPUBLIQUE ")
	require.True(t, ok)
	assert.Equal(t, "Rue de la République", rep.Name)
	assert.Len(t, rep.Geometries, 2)

	assert.Equal(t, geo.BoundingBox{MinLat: 43.290, MinLng: 5.365, MaxLat: 43.307, MaxLng: 5.400}, streets.BBox)
}

func TestBuildStreetsIgnoresMalformedPositions(t *testing.T) {
	srv := serveJSON(t, `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {"name": "Rue Exemple"},
			 "geometry": {"type": "LineString", "coordinates": [[5.37, 43.30], [5.38, 43.31], []]}},
			{"type": "Feature", "properties": {"name": "Quai du Port"},
			 "geometry": {"type": "Point", "coordinates": [5.3]}}
		]
	}`)
	loader := NewLoader(srv.Client(), Sources{StreetsURL: srv.URL})

	streets, err := loader.LoadStreets(context.Background())
	require.NoError(t, err)

	assert.Equal(t, geo.BoundingBox{MinLat: 43.30, MinLng: 5.37, MaxLat: 43.31, MaxLng: 5.38}, streets.BBox)
	assert.False(t, geo.IsPointInPlayableArea(geo.LatLng{Lat: 20, Lng: 3}, &streets.BBox, nil))
	assert.Equal(t, []string{"quai du port", "rue exemple"}, streets.Names)
	assert.Empty(t, streets.IndexByName["quai du port"].Geometries)
}

func TestBuildStreetsEmpty(t *testing.T) {
	streets := BuildStreets(&geo.FeatureCollection{})
	assert.Empty(t, streets.Names)
	assert.False(t, streets.BBox.Valid())
}

func TestBuildStreetsKeepsNameWithoutGeometry(t *testing.T) {
	fc := &geo.FeatureCollection{Features: []geo.Feature{
		{Properties: map[string]any{"name": "Impasse Vide"}},
	}}
	streets := BuildStreets(fc)
	assert.Equal(t, []string{"impasse vide"}, streets.Names)
	assert.Empty(t, streets.IndexByName["impasse vide"].Geometries)
	assert.False(t, streets.BBox.Valid())
}

func TestLoadExclusions(t *testing.T) {
	srv := serveJSON(t, exclusionsGeoJSON)
	loader := NewLoader(srv.Client(), Sources{ExclusionsURL: srv.URL})

	polygons, err := loader.LoadExclusions(context.Background())
	require.NoError(t, err)
	assert.Len(t, polygons, 3)
	assert.Equal(t, geo.Position{5.35, 43.30}, polygons[0][0][0])
	assert.Equal(t, geo.Position{5.30, 43.20}, polygons[2][0][0])
}

func TestLoadExclusionsNotConfigured(t *testing.T) {
	loader := NewLoader(nil, Sources{})
	polygons, err := loader.LoadExclusions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, polygons)
	assert.Empty(t, polygons)
}

func TestLoadStreetsFailures(t *testing.T) {
	t.Run("no location", func(t *testing.T) {
		_, err := NewLoader(nil, Sources{}).LoadStreets(context.Background())
		assert.ErrorIs(t, err, ErrDataUnavailable)
		assert.ErrorIs(t, err, ErrNoDatasetURL)
	})

	t.Run("upstream error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewLoader(srv.Client(), Sources{StreetsURL: srv.URL}).LoadStreets(context.Background())
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("network failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewLoader(nil, Sources{StreetsURL: url}).LoadStreets(context.Background())
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := serveJSON(t, `{"features": [`)
		_, err := NewLoader(srv.Client(), Sources{StreetsURL: srv.URL}).LoadStreets(context.Background())
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})
}

func TestStreetsLocation(t *testing.T) {
	tests := []struct {
		name    string
		sources Sources
		want    string
		wantErr bool
	}{
		{name: "explicit url wins", sources: Sources{StreetsURL: "https://cdn.example/rues.geojson", BaseURL: "https://quiz.example"}, want: "https://cdn.example/rues.geojson"},
		{name: "derived from base", sources: Sources{BaseURL: "https://quiz.example"}, want: "https://quiz.example/data/marseille_rues_enrichi.geojson"},
		{name: "base with path", sources: Sources{BaseURL: "https://quiz.example/app/"}, want: "https://quiz.example/data/marseille_rues_enrichi.geojson"},
		{name: "nothing configured", sources: Sources{}, wantErr: true},
		{name: "relative base", sources: Sources{BaseURL: "quiz.example"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sources.StreetsLocation()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDataUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCacheLoadsOnce(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache(func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	}, 0)

	for i := 0; i < 3; i++ {
		v, err := cache.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, int32(1), calls.Load())

	cache.Clear()
	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheDoesNotKeepErrors(t *testing.T) {
	fail := true
	cache := NewCache(func(ctx context.Context) (string, error) {
		if fail {
			return "", errors.New("offline")
		}
		return "ok", nil
	}, 0)

	_, err := cache.Get(context.Background())
	assert.Error(t, err)

	fail = false
	v, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCacheTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var calls int
	cache := NewCache(func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}, time.Minute)
	cache.now = func() time.Time { return now }

	v, _ := cache.Get(context.Background())
	assert.Equal(t, 1, v)

	now = now.Add(30 * time.Second)
	v, _ = cache.Get(context.Background())
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	v, _ = cache.Get(context.Background())
	assert.Equal(t, 2, v)
}

func TestCacheConcurrentColdStart(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	cache := NewCache(func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}, 0)

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.Get(context.Background())
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 7, v)
	}
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestStoreClear(t *testing.T) {
	var loads int
	store := NewStore(func(ctx context.Context) (*Streets, error) {
		loads++
		return BuildStreets(nil), nil
	}, func(ctx context.Context) ([]geo.Polygon, error) {
		return nil, nil
	}, 0)

	_, _ = store.Streets(context.Background())
	_, _ = store.Streets(context.Background())
	assert.Equal(t, 1, loads)

	store.Clear()
	_, _ = store.Streets(context.Background())
	assert.Equal(t, 2, loads)
}

func serveJSON(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCacheLoadSurvivesCancelledCaller(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	var loadErr error
	cache := NewCache(func(ctx context.Context) (int, error) {
		calls.Add(1)
		close(started)
		<-release
		loadErr = ctx.Err()
		return 11, nil
	}, 0)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := cache.Get(firstCtx)
		firstDone <- err
	}()
	<-started

	secondDone := make(chan int, 1)
	go func() {
		v, err := cache.Get(context.Background())
		assert.NoError(t, err)
		secondDone <- v
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(release)
	assert.Equal(t, 11, <-secondDone)
	assert.NoError(t, loadErr)
	assert.Equal(t, int32(1), calls.Load())

	v, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11, v)
}

func TestCacheLoadTimeout(t *testing.T) {
	cache := NewCache(func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, 0)
	cache.loadTimeout = 10 * time.Millisecond

	_, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
