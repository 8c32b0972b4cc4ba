package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/config"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/employee"
	appHTTP "github.com/cmlabs-hris/attendance-backend-go/internal/handler/http"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/calendar"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/logger"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-backend-go/internal/repository/cache"
	"github.com/cmlabs-hris/attendance-backend-go/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/attendance-backend-go/internal/service/attendance"
)

const (
	appName    = "attendance-cmlabs"
	appVersion = "v1.0.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, logger.Options{
		App:     appName,
		Version: appVersion,
		Env:     cfg.App.Env,
		Level:   logger.ParseLevel(cfg.App.LogLevel),
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := postgresql.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		slog.Info("database schema ensured")
	}

	cal, err := calendar.New(calendar.SystemClock{}, cfg.Attendance.Timezone)
	if err != nil {
		return err
	}

	attendanceRepo := postgresql.NewAttendanceRepository(db)
	var directory employee.Directory = postgresql.NewEmployeeDirectory(db)
	var sweepLocker attendance.SweepLocker

	if cfg.RedisEnabled() {
		rdb, err := database.NewRedisClient(ctx, database.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()

		directory = cache.NewCachedDirectory(directory, rdb, cfg.Redis.DirectoryCacheTTL)
		sweepLocker = cache.NewSweepLock(rdb, cfg.Redis.SweepLockTTL)
		slog.Info("redis enabled", "addr", cfg.Redis.Addr)
	}

	hub := sse.NewHub()
	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	attendanceSvc := attendanceService.NewAttendanceService(
		postgresql.NewTxManager(db),
		cal,
		attendanceRepo,
		directory,
		sweepLocker,
		sse.NewAttendancePublisher(hub),
	)

	if cfg.Attendance.SweepEnabled {
		scheduler := cron.NewScheduler(cal.Location())
		if err := cron.NewAttendanceJobs(attendanceSvc).RegisterJobs(scheduler, cfg.Attendance.SweepSchedule); err != nil {
			return fmt.Errorf("register cron jobs: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	attendanceHandler := appHTTP.NewAttendanceHandler(attendanceSvc, directory, hub)
	router := appHTTP.NewRouter(JWTService, attendanceHandler, appHTTP.RouterOptions{
		Logger:         log,
		AllowedOrigins: cfg.App.CORSOrigins,
		CronSecret:     cfg.Attendance.CronSecret,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server running", "addr", server.Addr, "timezone", cal.Location().String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
