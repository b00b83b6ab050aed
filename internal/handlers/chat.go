package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/powderplan/backend/internal/middleware"
	"github.com/powderplan/backend/internal/models"
	"github.com/powderplan/backend/pkg/utils"
	"gorm.io/gorm"
)

const maxMessageLength = 2000

type ChatHandler struct {
	DB *gorm.DB
}

func NewChatHandler(db *gorm.DB) *ChatHandler {
	return &ChatHandler{DB: db}
}

func (h *ChatHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid group id")
	}

	if _, err := getMembership(h.DB, groupID, currentUser.ID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "group access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed validating membership")
	}

	p := utils.ParsePagination(c)

	var total int64
	if err := h.DB.Model(&models.Message{}).Where("group_id = ?", groupID).Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed counting messages")
	}

	var messages []models.Message
	if err := utils.ApplyPagination(
		h.DB.Preload("User").
			Where("group_id = ?", groupID).
			Order("created_at DESC"), p).
		Find(&messages).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed listing messages")
	}

	return utils.Paginated(c, messages, p.Page, p.Limit, total)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *ChatHandler) Send(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid group id")
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid request body")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "message content is required")
	}
	if len(content) > maxMessageLength {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "message content exceeds 2000 characters")
	}

	if _, err := getMembership(h.DB, groupID, currentUser.ID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "group access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed validating membership")
	}

	message := models.Message{
		GroupID: groupID,
		UserID:  currentUser.ID,
		Content: content,
	}
	if err := h.DB.Create(&message).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed sending message")
	}

	if err := h.DB.Preload("User").First(&message, "id = ?", message.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading message")
	}
	return utils.Success(c, fiber.StatusCreated, message)
}
