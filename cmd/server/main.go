package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/barterly/trade-engine/internal/auth"
	"github.com/barterly/trade-engine/internal/boost"
	"github.com/barterly/trade-engine/internal/catalog"
	"github.com/barterly/trade-engine/internal/config"
	"github.com/barterly/trade-engine/internal/database"
	"github.com/barterly/trade-engine/internal/pins"
	"github.com/barterly/trade-engine/internal/ranking"
	"github.com/barterly/trade-engine/internal/reputation"
	"github.com/barterly/trade-engine/internal/trade"
	"github.com/barterly/trade-engine/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the trade engine server with graceful shutdown
// support. It wires the pin ledger, boost scorer, ranking, trade state
// machine and reputation aggregator over one database connection.
func main() {
	cfgPath := os.Getenv("CONFIG")
	if cfgPath == "" {
		cfgPath = "trade-engine.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authHandlers := auth.NewGinHandlers(authService)
	// Register ops credentials for the internal provisioning routes
	if err := authService.EnsureOpsCredential(auth.OpsUserID, auth.OpsAPISecret); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to register ops credentials")
	}

	catalogService := catalog.NewService(db)
	catalogHandlers := catalog.NewGinHandlers(catalogService)

	reputationService := reputation.NewService(db)
	reputationHandlers := reputation.NewGinHandlers(reputationService)

	tradeService := trade.NewService(db, reputationService)
	tradeHandlers := trade.NewGinHandlers(tradeService)

	scorer := boost.NewScorer(pins.NewDatabase(db), cfg.Boost.CacheSize, cfg.Boost.CacheTTL)

	pinService := pins.NewService(db, scorer)
	pinHandlers := pins.NewGinHandlers(pinService)

	rankingService := ranking.NewService(catalogService, scorer, cfg.Ranking.PortfolioCap)
	rankingHandlers := ranking.NewGinHandlers(rankingService)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, []byte(cfg.Auth.JWTSecret),
		authHandlers, tradeHandlers, reputationHandlers,
		pinHandlers, rankingHandlers, catalogHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations time to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth and feed routes: public endpoints
// - Trade and pin routes: protected by JWT authentication
// - Internal routes: provisioning for the excluded identity and item stores
func setupRoutes(
	router *gin.Engine,
	jwtSecret []byte,
	authHandlers *auth.GinHandlers,
	tradeHandlers *trade.GinHandlers,
	reputationHandlers *reputation.GinHandlers,
	pinHandlers *pins.GinHandlers,
	rankingHandlers *ranking.GinHandlers,
	catalogHandlers *catalog.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Public read routes: ranked feeds and reputation lookups
		v1.GET("/items", rankingHandlers.ListItemsHandler())
		v1.GET("/users/:user_id", reputationHandlers.GetUserHandler())
		v1.GET("/users/:user_id/portfolio", rankingHandlers.PortfolioHandler())

		// Trade routes
		trades := v1.Group("/trades")
		trades.Use(middleware.JWTAuth(jwtSecret))
		{
			trades.POST("", tradeHandlers.CreateTradeHandler())
			trades.GET("", tradeHandlers.ListTradesHandler())
			trades.GET("/:trade_id", tradeHandlers.GetTradeHandler())
			trades.POST("/:trade_id/confirm", tradeHandlers.ConfirmTradeHandler())
			trades.POST("/:trade_id/rate", reputationHandlers.RateTradeHandler())
		}

		// Pin routes
		items := v1.Group("/items")
		items.Use(middleware.JWTAuth(jwtSecret))
		{
			items.POST("/:item_id/pin", pinHandlers.PinItemHandler())
			items.DELETE("/:item_id/pin", pinHandlers.UnpinItemHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/users", authHandlers.CreateUserHandler())
			internal.POST("/items", catalogHandlers.CreateItemHandler())
		}
	}
}
