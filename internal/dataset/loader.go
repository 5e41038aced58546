package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/susu3304/ruesquiz/internal/geo"
	"github.com/susu3304/ruesquiz/internal/logger"
	"github.com/susu3304/ruesquiz/internal/metrics"
)

// DefaultDatasetPath is where the streets file lives relative to the deploy base URL.
const DefaultDatasetPath = "/data/marseille_rues_enrichi.geojson"

var (
	ErrDataUnavailable = errors.New("dataset unavailable")
	ErrNoDatasetURL    = errors.New("no streets dataset location configured")
)

// Sources tells the loader where to find the datasets.
type Sources struct {
	// StreetsURL wins over BaseURL when set.
	StreetsURL string
	// BaseURL is the deploy origin; DefaultDatasetPath is resolved against it.
	BaseURL string
	// ExclusionsURL is optional. Empty means nothing is excluded.
	ExclusionsURL string
}

// StreetsLocation resolves the streets dataset URL.
func (s Sources) StreetsLocation() (string, error) {
	if s.StreetsURL != "" {
		return s.StreetsURL, nil
	}
	if s.BaseURL == "" {
		return "", fmt.Errorf("%w: %w", ErrDataUnavailable, ErrNoDatasetURL)
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("%w: invalid base URL %q", ErrDataUnavailable, s.BaseURL)
	}
	return base.ResolveReference(&url.URL{Path: DefaultDatasetPath}).String(), nil
}

// Loader fetches GeoJSON datasets over HTTP.
type Loader struct {
	client  *http.Client
	sources Sources
}

func NewLoader(client *http.Client, sources Sources) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Loader{client: client, sources: sources}
}

func (l *Loader) LoadStreets(ctx context.Context) (*Streets, error) {
	location, err := l.sources.StreetsLocation()
	if err != nil {
		metrics.DatasetLoads.WithLabelValues("streets", "error").Inc()
		return nil, err
	}
	fc, err := l.fetch(ctx, location)
	if err != nil {
		metrics.DatasetLoads.WithLabelValues("streets", "error").Inc()
		return nil, err
	}
	streets := BuildStreets(fc)
	metrics.DatasetLoads.WithLabelValues("streets", "ok").Inc()
	logger.Success("Loaded %d streets from %s", len(streets.Names), location)
	return streets, nil
}

func (l *Loader) LoadExclusions(ctx context.Context) ([]geo.Polygon, error) {
	if l.sources.ExclusionsURL == "" {
		return []geo.Polygon{}, nil
	}
	fc, err := l.fetch(ctx, l.sources.ExclusionsURL)
	if err != nil {
		metrics.DatasetLoads.WithLabelValues("exclusions", "error").Inc()
		return nil, err
	}
	polygons := BuildExclusions(fc)
	metrics.DatasetLoads.WithLabelValues("exclusions", "ok").Inc()
	logger.Success("Loaded %d exclusion polygons", len(polygons))
	return polygons, nil
}

func (l *Loader) fetch(ctx context.Context, location string) (*geo.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrDataUnavailable, location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetch %s: status %d", ErrDataUnavailable, location, resp.StatusCode)
	}

	var fc geo.FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrDataUnavailable, location, err)
	}
	return &fc, nil
}
