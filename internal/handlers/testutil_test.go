package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/powderplan/backend/internal/config"
	"github.com/powderplan/backend/internal/middleware"
	"github.com/powderplan/backend/internal/models"
	"github.com/powderplan/backend/internal/services"
	"github.com/powderplan/backend/pkg/logger"
	"github.com/powderplan/backend/pkg/utils"
	"gorm.io/gorm"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.Invitation{},
		&models.Message{},
		&models.Vote{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	// SMTP is unconfigured, so delivery is skipped, but the send
	// goroutine still runs and reads the invitation.
	mailer := services.NewMailer(config.SMTPConfig{}, "http://localhost:3001")

	authHandler := NewAuthHandler(db, nil)
	usersHandler := NewUsersHandler(db, nil)
	groupsHandler := NewGroupsHandler(db, mailer)
	invitationsHandler := NewInvitationsHandler(db, mailer)
	votesHandler := NewVotesHandler(db)
	chatHandler := NewChatHandler(db)
	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("http://localhost:3001"))
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

	api.Get("/users/search", authMiddleware.RequireAuth, usersHandler.Search)

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

	return &testEnv{app: app, db: db}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password, fullName string) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

// createTestGroup inserts a group plus owner membership directly,
// skipping the HTTP layer.
func createTestGroup(t *testing.T, db *gorm.DB, owner *models.User, name string, status models.GroupStatus) *models.Group {
	t.Helper()

	group := &models.Group{
		Name:         name,
		CheckInDate:  time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		CheckOutDate: time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC),
		MaxMembers:   5,
		Status:       status,
		CreatedByID:  owner.ID,
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed creating test group: %v", err)
	}

	membership := &models.GroupMember{
		GroupID: group.ID,
		UserID:  owner.ID,
		Role:    models.RoleOwner,
	}
	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed creating owner membership: %v", err)
	}

	return group
}

func addTestMember(t *testing.T, db *gorm.DB, group *models.Group, user *models.User, role models.MemberRole) {
	t.Helper()

	membership := &models.GroupMember{
		GroupID: group.ID,
		UserID:  user.ID,
		Role:    role,
	}
	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed adding test member: %v", err)
	}
}

func mustUUID(t *testing.T, value string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(value)
	if err != nil {
		t.Fatalf("invalid uuid %q: %v", value, err)
	}
	return id
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

// dataMap extracts the envelope's data object.
func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object in envelope, got %+v", body)
	}
	return data
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertErrorCode(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object in envelope, got %+v", body)
	}
	if got, _ := errObj["code"].(string); got != expected {
		t.Fatalf("expected error code %q, got %q", expected, got)
	}
}
