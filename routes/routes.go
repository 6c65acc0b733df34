package routes

import (
	"net/http"

	_ "github.com/Dosada05/pickleball-platform/docs"
	"github.com/Dosada05/pickleball-platform/handlers"
	"github.com/Dosada05/pickleball-platform/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

func SetupRoutes(
	router *chi.Mux,
	authenticator *middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	teamHandler *handlers.TeamHandler,
	joinRequestHandler *handlers.JoinRequestHandler,
	inviteHandler *handlers.InviteHandler,
	eventHandler *handlers.EventHandler,
	notificationHandler *handlers.NotificationHandler,
	chatHandler *handlers.ChatHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/google", authHandler.GoogleSignIn)
		r.Post("/apple", authHandler.AppleSignIn)
	})

	router.Route("/users", func(r chi.Router) {
		r.Get("/{userID}", userHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(authenticator.Authenticate)
			r.Get("/me", userHandler.GetMe)
			r.Patch("/me", userHandler.UpdateProfile)
			r.Post("/me/avatar", userHandler.UploadAvatar)
			r.Delete("/me", userHandler.DeleteAccount)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/", teamHandler.List)
		r.Get("/{teamID}", teamHandler.GetByID)
		r.Get("/{teamID}/members", teamHandler.ListMembers)

		r.Group(func(r chi.Router) {
			r.Use(authenticator.Authenticate)

			r.Post("/", teamHandler.Create)
			r.Patch("/{teamID}", teamHandler.Update)
			r.Delete("/{teamID}", teamHandler.Delete)
			r.Post("/{teamID}/image", teamHandler.UploadImage)
			r.Post("/{teamID}/leave", teamHandler.Leave)

			r.Put("/{teamID}/members/{userID}/role", teamHandler.ChangeMemberRole)
			r.Delete("/{teamID}/members/{userID}", teamHandler.RemoveMember)

			r.Post("/{teamID}/requests", joinRequestHandler.Request)
			r.Get("/{teamID}/requests", joinRequestHandler.ListPending)

			r.Post("/{teamID}/invites", inviteHandler.Create)
			r.Get("/{teamID}/invites", inviteHandler.ListForTeam)

			r.Post("/{teamID}/events", eventHandler.CreateForTeam)
			r.Get("/{teamID}/chat", chatHandler.GetTeamRoom)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(authenticator.Authenticate)

		r.Post("/requests/{requestID}/resolve", joinRequestHandler.Resolve)
		r.Post("/invites/{token}/redeem", inviteHandler.Redeem)
	})

	router.Route("/events", func(r chi.Router) {
		r.Use(authenticator.Authenticate)

		r.Get("/", eventHandler.List)
		r.Post("/", eventHandler.Create)
		r.Get("/{eventID}", eventHandler.GetByID)
		r.Patch("/{eventID}", eventHandler.Update)
		r.Post("/{eventID}/close", eventHandler.Close)
		r.Delete("/{eventID}", eventHandler.Delete)

		r.Post("/{eventID}/reservations", eventHandler.Reserve)
		r.Get("/{eventID}/chat", chatHandler.GetEventRoom)
	})

	router.Group(func(r chi.Router) {
		r.Use(authenticator.Authenticate)
		r.Delete("/reservations/{reservationID}", eventHandler.CancelReservation)
	})

	router.Route("/notifications", func(r chi.Router) {
		r.Use(authenticator.Authenticate)

		r.Get("/", notificationHandler.List)
		r.Get("/unread-count", notificationHandler.UnreadCount)
		r.Post("/read-all", notificationHandler.MarkAllRead)
		r.Post("/{notificationID}/read", notificationHandler.MarkRead)
		r.Delete("/{notificationID}", notificationHandler.Delete)
	})

	router.Route("/chat/rooms/{roomID}", func(r chi.Router) {
		r.Use(authenticator.Authenticate)

		r.Get("/messages", chatHandler.History)
		r.Post("/messages", chatHandler.SendMessage)
	})

	router.Get("/ws/chat/{roomID}", webSocketHandler.ServeChat)
}
