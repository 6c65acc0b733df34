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

	"github.com/Dosada05/pickleball-platform/chat"
	"github.com/Dosada05/pickleball-platform/config"
	"github.com/Dosada05/pickleball-platform/db"
	"github.com/Dosada05/pickleball-platform/handlers"
	"github.com/Dosada05/pickleball-platform/middleware"
	"github.com/Dosada05/pickleball-platform/repositories"
	api "github.com/Dosada05/pickleball-platform/routes"
	"github.com/Dosada05/pickleball-platform/services"
	"github.com/Dosada05/pickleball-platform/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

const schedulerInterval = 30 * time.Second

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Инициализация загрузчика файлов (Cloudflare R2)
	cloudflareUploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	// Инициализация WebSocket-хаба чата
	chatHub := chat.NewHub(logger)
	go chatHub.Run()
	logger.Info("chat hub started")

	// Инициализация репозиториев
	transactor := repositories.NewTransactor(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	memberRepo := repositories.NewPostgresMemberRepository(dbConn)
	joinRequestRepo := repositories.NewPostgresJoinRequestRepository(dbConn)
	inviteRepo := repositories.NewPostgresInviteRepository(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	reservationRepo := repositories.NewPostgresReservationRepository(dbConn)
	notificationRepo := repositories.NewPostgresNotificationRepository(dbConn)
	chatRepo := repositories.NewPostgresChatRepository(dbConn)
	logger.Info("repositories initialized")

	// Инициализация сервисов
	notificationService := services.NewNotificationService(notificationRepo)
	authService := services.NewAuthService(userRepo, services.ProviderSignInConfig{
		GoogleClientID: cfg.GoogleClientID,
		AppleClientID:  cfg.AppleClientID,
	})
	userService := services.NewUserService(userRepo, cloudflareUploader)
	teamService := services.NewTeamService(
		transactor,
		teamRepo,
		memberRepo,
		notificationService,
		cloudflareUploader,
	)
	joinRequestService := services.NewJoinRequestService(
		transactor,
		joinRequestRepo,
		teamRepo,
		memberRepo,
		notificationService,
		cloudflareUploader,
	)
	inviteService := services.NewInviteService(transactor, inviteRepo, memberRepo, teamRepo)
	eventService := services.NewEventService(
		transactor,
		eventRepo,
		reservationRepo,
		memberRepo,
		userRepo,
		teamRepo,
		notificationService,
		cloudflareUploader,
		logger,
	)
	chatService := services.NewChatService(
		chatRepo,
		eventRepo,
		reservationRepo,
		memberRepo,
		cloudflareUploader,
	)
	logger.Info("services initialized")

	// Планировщик: завершение прошедших событий и чистка приглашений
	go func() {
		ticker := time.NewTicker(schedulerInterval)
		defer ticker.Stop()
		logger.Info("background scheduler started", slog.Duration("interval", schedulerInterval))

		runOnce := func() {
			if err := eventService.AutoCompleteEvents(context.Background()); err != nil {
				logger.Error("scheduler: auto-complete events failed", slog.Any("error", err))
			}
			if purged, err := inviteService.PurgeExpired(context.Background()); err != nil {
				logger.Error("scheduler: invite purge failed", slog.Any("error", err))
			} else if purged > 0 {
				logger.Info("scheduler: purged expired invites", slog.Int64("count", purged))
			}
		}

		runOnce()
		for range ticker.C {
			runOnce()
		}
	}()

	// Инициализация обработчиков HTTP
	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey)
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	userHandler := handlers.NewUserHandler(userService)
	teamHandler := handlers.NewTeamHandler(teamService)
	joinRequestHandler := handlers.NewJoinRequestHandler(joinRequestService)
	inviteHandler := handlers.NewInviteHandler(inviteService)
	eventHandler := handlers.NewEventHandler(eventService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	chatHandler := handlers.NewChatHandler(chatService, chatHub)
	webSocketHandler := handlers.NewWebSocketHandler(chatHub, chatService, authenticator, logger)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authenticator,
		authHandler,
		userHandler,
		teamHandler,
		joinRequestHandler,
		inviteHandler,
		eventHandler,
		notificationHandler,
		chatHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
