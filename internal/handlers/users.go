package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/powderplan/backend/internal/middleware"
	"github.com/powderplan/backend/internal/models"
	"github.com/powderplan/backend/internal/storage"
	"github.com/powderplan/backend/pkg/utils"
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
}

func NewUsersHandler(db *gorm.DB, storageClient *storage.MinIOClient) *UsersHandler {
	return &UsersHandler{DB: db, Storage: storageClient}
}

// Search finds users by email or name, for the invite picker.
func (h *UsersHandler) Search(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	search := strings.TrimSpace(c.Query("search"))
	limit := c.QueryInt("limit", 5)
	if limit > 50 {
		limit = 50
	}

	query := h.DB.Model(&models.User{})
	if search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", searchValue, searchValue)
	}

	var users []models.User
	if err := query.Order("created_at DESC").Limit(limit).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed searching users")
	}

	return utils.Success(c, fiber.StatusOK, users)
}

// Avatar streams a user's avatar object from storage.
func (h *UsersHandler) Avatar(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid user id")
	}
	if h.Storage == nil {
		return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "avatar not found")
	}

	object, contentType, err := h.Storage.Download(c.Context(), "avatars/"+userID.String())
	if err != nil {
		return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "avatar not found")
	}

	if contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.SendStream(object)
}
