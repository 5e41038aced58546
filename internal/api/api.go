package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/susu3304/ruesquiz/internal/auth"
	"github.com/susu3304/ruesquiz/internal/daily"
	"github.com/susu3304/ruesquiz/internal/logger"
)

// ProfileStore keeps leaderboard display names in sync with the identity provider.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, userID uuid.UUID, username string) error
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Bind           string
	AllowedOrigins []string
	// AttemptsPerMinute is the per-user attempt budget. Zero disables limiting.
	AttemptsPerMinute int
	Profiles          ProfileStore
	Health            Pinger
}

type API struct {
	router   *mux.Router
	service  *daily.Service
	auth     auth.Authenticator
	options  Options
	limiters *limiterSet
}

func New(service *daily.Service, authenticator auth.Authenticator, opts Options) *API {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	api := &API{
		router:   mux.NewRouter(),
		service:  service,
		auth:     authenticator,
		options:  opts,
		limiters: newLimiterSet(opts.AttemptsPerMinute),
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.router.Use(a.observeMiddleware)
	a.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})
	a.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found.")
	})

	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Public endpoints
	a.router.HandleFunc("/api/daily/leaderboard", a.handleLeaderboard).Methods("GET")

	// Authenticates after body validation, then rate limits
	a.router.HandleFunc("/api/daily/attempt", a.handleAttempt).Methods("POST")

	// Protected endpoints
	protected := a.router.PathPrefix("/api/daily").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/status", a.handleStatus).Methods("GET")
}

// Handler returns the router wrapped with CORS.
func (a *API) Handler() http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: a.options.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		// Credentials stay off: tokens travel in the Authorization header.
		AllowCredentials: false,
	}
	return cors.New(corsOptions).Handler(a.router)
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (a *API) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.options.Bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go a.limiters.pruneEvery(ctx, 10*time.Minute)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening on http://%s", a.options.Bind)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
