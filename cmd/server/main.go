package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/powderplan/backend/internal/config"
	"github.com/powderplan/backend/internal/database"
	"github.com/powderplan/backend/internal/handlers"
	"github.com/powderplan/backend/internal/middleware"
	"github.com/powderplan/backend/internal/services"
	"github.com/powderplan/backend/internal/storage"
	"github.com/powderplan/backend/pkg/logger"
	"github.com/powderplan/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	liteAPI := services.NewLiteAPIService(cfg.LiteAPI)
	liteAPI.StartCacheCleanup(10 * time.Minute)

	mailer := services.NewMailer(cfg.SMTP, cfg.Server.FrontendURL)

	authHandler := handlers.NewAuthHandler(db, storageClient)
	usersHandler := handlers.NewUsersHandler(db, storageClient)
	groupsHandler := handlers.NewGroupsHandler(db, mailer)
	invitationsHandler := handlers.NewInvitationsHandler(db, mailer)
	votesHandler := handlers.NewVotesHandler(db)
	chatHandler := handlers.NewChatHandler(db)
	hotelsHandler := handlers.NewHotelsHandler(liteAPI)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)
	authRoutes.Post("/avatar", authMiddleware.RequireAuth, authHandler.UploadAvatar)

	api.Get("/users/search", authMiddleware.RequireAuth, usersHandler.Search)
	api.Get("/users/:id/avatar", usersHandler.Avatar)

	groupRoutes := api.Group("/groups", authMiddleware.RequireAuth)
	groupRoutes.Post("/", groupsHandler.Create)
	groupRoutes.Get("/", groupsHandler.List)
	groupRoutes.Get("/:id", groupsHandler.Get)
	groupRoutes.Put("/:id", groupsHandler.Update)
	groupRoutes.Delete("/:id", groupsHandler.Delete)
	groupRoutes.Delete("/:id/members/:userId", groupsHandler.RemoveMember)

	groupRoutes.Get("/:id/invitations", invitationsHandler.ListForGroup)
	groupRoutes.Post("/:id/invitations", invitationsHandler.Send)

	groupRoutes.Post("/:id/votes", votesHandler.Cast)
	groupRoutes.Get("/:id/votes", votesHandler.List)
	groupRoutes.Get("/:id/votes/results", votesHandler.Results)
	groupRoutes.Post("/:id/votes/close", votesHandler.Close)

	groupRoutes.Get("/:id/chat", chatHandler.List)
	groupRoutes.Post("/:id/chat", chatHandler.Send)

	invitationRoutes := api.Group("/invitations")
	invitationRoutes.Get("/user", authMiddleware.RequireAuth, invitationsHandler.ListForUser)
	invitationRoutes.Get("/:id", authMiddleware.OptionalAuth, invitationsHandler.Get)
	invitationRoutes.Delete("/:id", authMiddleware.RequireAuth, invitationsHandler.Cancel)
	invitationRoutes.Post("/:id/accept", authMiddleware.RequireAuth, invitationsHandler.Accept)
	invitationRoutes.Post("/:id/reject", authMiddleware.OptionalAuth, invitationsHandler.Reject)

	voteRoutes := api.Group("/votes", authMiddleware.RequireAuth)
	voteRoutes.Patch("/:id", votesHandler.Update)
	voteRoutes.Delete("/:id", votesHandler.Delete)

	hotelRoutes := api.Group("/hotels", authMiddleware.RequireAuth)
	hotelRoutes.Get("/", hotelsHandler.Search)
	hotelRoutes.Post("/rates", hotelsHandler.Rates)
	hotelRoutes.Get("/:id", hotelsHandler.Details)
	hotelRoutes.Get("/:id/reviews", hotelsHandler.Reviews)

	api.Get("/facilities", authMiddleware.RequireAuth, hotelsHandler.Facilities)

	countryRoutes := api.Group("/countries", authMiddleware.RequireAuth)
	countryRoutes.Get("/", hotelsHandler.Countries)
	countryRoutes.Get("/:country/cities", hotelsHandler.Cities)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
