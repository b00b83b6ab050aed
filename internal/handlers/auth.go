package handlers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/powderplan/backend/internal/middleware"
	"github.com/powderplan/backend/internal/models"
	"github.com/powderplan/backend/internal/storage"
	"github.com/powderplan/backend/pkg/logger"
	"github.com/powderplan/backend/pkg/utils"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
}

func NewAuthHandler(db *gorm.DB, storageClient *storage.MinIOClient) *AuthHandler {
	return &AuthHandler{DB: db, Storage: storageClient}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	if !isValidEmail(req.Email) {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid email address")
	}
	if len(req.Password) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "password must be at least 8 characters")
	}
	if req.FullName == "" {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "full_name is required")
	}

	var existing models.User
	if err := h.DB.First(&existing, "email = ?", req.Email).Error; err == nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "email is already registered")
	} else if err != gorm.ErrRecordNotFound {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed checking email")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeInternalError, "failed hashing password")
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed creating user")
	}

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeInternalError, "failed generating token")
	}

	logger.InfoWithUser(user.ID.String(), "user_registered", map[string]interface{}{
		"email": user.Email,
	})

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"user": user, "token": token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid request body")
	}

	var user models.User
	err := h.DB.First(&user, "email = ?", strings.ToLower(strings.TrimSpace(req.Email))).Error
	if err != nil || !utils.CheckPassword(req.Password, user.PasswordHash) {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "invalid email or password")
	}

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeInternalError, "failed generating token")
	}

	logger.InfoWithUser(user.ID.String(), "user_logged_in", nil)

	return utils.Success(c, fiber.StatusOK, fiber.Map{"user": user, "token": token})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, currentUser)
}

type updateMeRequest struct {
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	var req updateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "full_name cannot be empty")
		}
		updates["full_name"] = name
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "no valid fields to update")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed updating profile")
	}

	var updated models.User
	if err := h.DB.First(&updated, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading profile")
	}
	return utils.Success(c, fiber.StatusOK, updated)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid request body")
	}

	if !utils.CheckPassword(req.CurrentPassword, currentUser.PasswordHash) {
		return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "current password is incorrect")
	}
	if len(req.NewPassword) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "password must be at least 8 characters")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeInternalError, "failed hashing password")
	}
	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).Update("password_hash", hash).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed updating password")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "password updated"})
}

var allowedAvatarTypes = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

func (h *AuthHandler) UploadAvatar(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}
	if h.Storage == nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeInternalError, "avatar storage is not configured")
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "avatar file is required")
	}
	if !allowedAvatarTypes[strings.ToLower(filepath.Ext(fileHeader.Filename))] {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "avatar must be a png, jpg, or webp image")
	}
	if fileHeader.Size > 5*1024*1024 {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "avatar must be under 5MB")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeInternalError, "failed reading upload")
	}
	defer file.Close()

	objectName := "avatars/" + currentUser.ID.String()
	contentType := fileHeader.Header.Get("Content-Type")
	if err := h.Storage.Upload(c.Context(), objectName, file, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeInternalError, "failed storing avatar")
	}

	avatarURL := fmt.Sprintf("/api/users/%s/avatar", currentUser.ID)
	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).Update("avatar_url", avatarURL).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed updating avatar url")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"avatar_url": avatarURL})
}
