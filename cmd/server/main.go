package main

import (
	"log"
	"os"
	"time"

	"focusd/internal/clock"
	"focusd/internal/config"
	"focusd/internal/db"
	"focusd/internal/handler"
	"focusd/internal/notify"
	"focusd/internal/repository"
	"focusd/internal/router"
	"focusd/internal/service"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stderr, "focusd ", log.LstdFlags)

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		logger.Fatalf("run migrations: %v", err)
	}

	userRepo := repository.NewUserRepository(database)
	settingsRepo := repository.NewSettingsRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	habitRepo := repository.NewHabitRepository(database)

	clk := clock.System()
	notifier := notify.NewLogNotifier(logger)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	timerService := service.NewTimerService(clk, settingsRepo, sessionRepo, notifier, logger)
	habitService := service.NewHabitService(habitRepo, clk)
	statsService := service.NewStatsService(sessionRepo, habitRepo, clk)

	authHandler := handler.NewAuthHandler(authService)
	timerHandler := handler.NewTimerHandler(timerService)
	habitHandler := handler.NewHabitHandler(habitService)
	statsHandler := handler.NewStatsHandler(statsService)

	go runTicker(timerService, cfg.TickInterval)

	engine := router.New(authService, authHandler, timerHandler, habitHandler, statsHandler, cfg.CORSOrigins)
	logger.Printf("listening on :%s", cfg.Port)
	if err := engine.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("run server: %v", err)
	}
}

// runTicker drives every live timer engine. Engines derive remaining time
// from their deadline anchors, so a late tick only delays completion side
// effects, never the countdown arithmetic.
func runTicker(timerService *service.TimerService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		timerService.TickAll()
	}
}
