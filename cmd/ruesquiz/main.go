package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/susu3304/ruesquiz/internal/api"
	"github.com/susu3304/ruesquiz/internal/auth"
	"github.com/susu3304/ruesquiz/internal/bot"
	"github.com/susu3304/ruesquiz/internal/config"
	"github.com/susu3304/ruesquiz/internal/daily"
	"github.com/susu3304/ruesquiz/internal/dataset"
	"github.com/susu3304/ruesquiz/internal/db"
	"github.com/susu3304/ruesquiz/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	logger.SetDebug(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(ctx); err != nil {
		logger.Error("Failed to run migrations: %v", err)
		os.Exit(1)
	}

	if cfg.DailyTargetSecret == "" {
		logger.Warning("DAILY_TARGET_SECRET is not set; daily attempts will fail")
	}

	loader := dataset.NewLoader(nil, dataset.Sources{
		StreetsURL:    cfg.StreetsGeoJSONURL,
		BaseURL:       cfg.DataBaseURL,
		ExclusionsURL: cfg.ExclusionsGeoJSONURL,
	})
	service := daily.NewService(database, dataset.NewHTTPStore(loader, cfg.DatasetTTL), cfg.DailyTargetSecret)

	apiServer := api.New(service, newAuthenticator(cfg), api.Options{
		Bind:              cfg.WebBind,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		AttemptsPerMinute: cfg.AttemptRatePerMinute,
		Profiles:          database,
		Health:            database,
	})

	// Discord bot is optional
	if cfg.DiscordToken != "" {
		discordBot, err := bot.New(cfg.DiscordToken, service)
		if err != nil {
			logger.Error("Failed to create discord bot: %v", err)
			os.Exit(1)
		}
		if err := discordBot.Start(); err != nil {
			logger.Error("Failed to start discord bot: %v", err)
			os.Exit(1)
		}
		defer discordBot.Stop()
	}

	if err := apiServer.Start(ctx); err != nil {
		logger.Error("API server error: %v", err)
		return
	}
	logger.Info("Shutting down...")
}

// newAuthenticator prefers local JWT verification and falls back to the identity endpoint.
func newAuthenticator(cfg *config.Config) auth.Authenticator {
	switch {
	case cfg.SupabaseJWTSecret != "":
		return auth.NewJWTVerifier(cfg.SupabaseJWTSecret)
	case cfg.SupabaseURL != "" && cfg.SupabaseServiceRoleKey != "":
		return auth.NewIdentityClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, nil)
	default:
		logger.Warning("No SUPABASE_JWT_SECRET or SUPABASE_URL configured; authenticated routes will reject every request")
		return auth.Disabled{}
	}
}
