package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/powderplan/backend/internal/middleware"
	"github.com/powderplan/backend/internal/models"
	"github.com/powderplan/backend/internal/services"
	"github.com/powderplan/backend/pkg/logger"
	"github.com/powderplan/backend/pkg/utils"
	"gorm.io/gorm"
)

type InvitationsHandler struct {
	DB     *gorm.DB
	Mailer *services.Mailer
}

func NewInvitationsHandler(db *gorm.DB, mailer *services.Mailer) *InvitationsHandler {
	return &InvitationsHandler{DB: db, Mailer: mailer}
}

// expireIfDue applies lazy expiry: a pending invitation read past its
// deadline is persisted as expired before anything else happens to it.
func (h *InvitationsHandler) expireIfDue(invitation *models.Invitation) {
	if !invitation.IsExpired(time.Now()) {
		return
	}
	if err := h.DB.Model(&models.Invitation{}).
		Where("id = ?", invitation.ID).
		Update("status", models.InvitationExpired).Error; err != nil {
		logger.Error("invitation_expiry_write_failed", err, map[string]interface{}{
			"invitation_id": invitation.ID.String(),
		})
		return
	}
	invitation.Status = models.InvitationExpired
}

type sendInvitationRequest struct {
	InvitedEmail string  `json:"invited_email"`
	Message      *string `json:"message"`
}

func (h *InvitationsHandler) Send(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid group id")
	}

	var req sendInvitationRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid request body")
	}
	req.InvitedEmail = strings.ToLower(strings.TrimSpace(req.InvitedEmail))
	if !isValidEmail(req.InvitedEmail) {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid email address")
	}

	membership, err := getMembership(h.DB, groupID, currentUser.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "group access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed validating membership")
	}
	if !membership.Role.CanManage() {
		return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "only group owners and admins can send invitations")
	}

	var group models.Group
	if err := h.DB.First(&group, "id = ?", groupID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "group not found")
	}

	// Reject emails that already belong to a member.
	var invitedUser models.User
	invitedUserErr := h.DB.First(&invitedUser, "email = ?", req.InvitedEmail).Error
	if invitedUserErr == nil {
		if _, err := getMembership(h.DB, groupID, invitedUser.ID); err == nil {
			return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "user is already a member of this group")
		}
	}

	// At most one pending invitation per (group, email). Expired
	// pending rows are flipped first so they do not block a re-invite.
	var pending models.Invitation
	err = h.DB.First(&pending, "group_id = ? AND invited_email = ? AND status = ?",
		groupID, req.InvitedEmail, models.InvitationPending).Error
	if err == nil {
		h.expireIfDue(&pending)
		if pending.Status == models.InvitationPending {
			return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invitation already sent to this email")
		}
	} else if err != gorm.ErrRecordNotFound {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed checking existing invitations")
	}

	invitation := models.Invitation{
		GroupID:      groupID,
		InvitedByID:  currentUser.ID,
		InvitedEmail: req.InvitedEmail,
		Status:       models.InvitationPending,
		Message:      req.Message,
		ExpiresAt:    time.Now().Add(models.InvitationTTL),
	}
	if invitedUserErr == nil {
		invitation.InvitedUserID = &invitedUser.ID
	}

	if err := h.DB.Create(&invitation).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed creating invitation")
	}

	logger.InfoWithUser(currentUser.ID.String(), "invitation_sent", map[string]interface{}{
		"invitation_id": invitation.ID.String(),
		"group_id":      groupID.String(),
		"invited_email": req.InvitedEmail,
	})

	if h.Mailer != nil {
		go h.Mailer.SendInvitation(&invitation, &group, currentUser)
	}

	// Reload into a fresh struct; the delivery goroutine still reads
	// the original.
	var created models.Invitation
	if err := h.DB.Preload("Group").Preload("Inviter").First(&created, "id = ?", invitation.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading invitation")
	}
	return utils.Success(c, fiber.StatusCreated, created)
}

func (h *InvitationsHandler) ListForGroup(c *fiber.Ctx) error {
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
	if err := h.DB.Model(&models.Invitation{}).Where("group_id = ?", groupID).Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed counting invitations")
	}

	var invitations []models.Invitation
	if err := utils.ApplyPagination(
		h.DB.Preload("Group").Preload("Inviter").
			Where("group_id = ?", groupID).
			Order("created_at DESC"), p).
		Find(&invitations).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed listing invitations")
	}

	for i := range invitations {
		h.expireIfDue(&invitations[i])
	}

	return utils.Paginated(c, invitations, p.Page, p.Limit, total)
}

// ListForUser returns invitations addressed to the caller's email.
func (h *InvitationsHandler) ListForUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	var invitations []models.Invitation
	if err := h.DB.Preload("Group").Preload("Inviter").
		Where("invited_email = ?", currentUser.Email).
		Order("created_at DESC").
		Find(&invitations).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed listing invitations")
	}

	for i := range invitations {
		h.expireIfDue(&invitations[i])
	}

	return utils.Success(c, fiber.StatusOK, invitations)
}

// Get serves the invitation landing page. No session is required; the
// invitee follows an emailed link before logging in.
func (h *InvitationsHandler) Get(c *fiber.Ctx) error {
	invitationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid invitation id")
	}

	var invitation models.Invitation
	if err := h.DB.Preload("Group").Preload("Inviter").First(&invitation, "id = ?", invitationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "invitation not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading invitation")
	}

	h.expireIfDue(&invitation)
	return utils.Success(c, fiber.StatusOK, invitation)
}

// Cancel withdraws a pending invitation. Allowed for the inviter and
// for group owners/admins.
func (h *InvitationsHandler) Cancel(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	invitationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid invitation id")
	}

	var invitation models.Invitation
	if err := h.DB.First(&invitation, "id = ?", invitationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "invitation not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading invitation")
	}

	if invitation.InvitedByID != currentUser.ID {
		membership, err := getMembership(h.DB, invitation.GroupID, currentUser.ID)
		if err != nil || !membership.Role.CanManage() {
			return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "insufficient permissions")
		}
	}

	h.expireIfDue(&invitation)
	if invitation.Status != models.InvitationPending {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "only pending invitations can be cancelled")
	}

	if err := h.DB.Delete(&models.Invitation{}, "id = ?", invitationID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed cancelling invitation")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}

func (h *InvitationsHandler) Accept(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	invitationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid invitation id")
	}

	var invitation models.Invitation
	if err := h.DB.Preload("Group").First(&invitation, "id = ?", invitationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "invitation not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading invitation")
	}

	h.expireIfDue(&invitation)
	if invitation.Status == models.InvitationExpired {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invitation has expired")
	}
	if invitation.Status != models.InvitationPending {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invitation is no longer valid")
	}
	if currentUser.Email != invitation.InvitedEmail {
		return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "this invitation is not for your email address")
	}

	// Already a member: mark accepted and answer success.
	if _, err := getMembership(h.DB, invitation.GroupID, currentUser.ID); err == nil {
		if err := h.DB.Model(&models.Invitation{}).Where("id = ?", invitationID).Updates(map[string]interface{}{
			"status":          models.InvitationAccepted,
			"invited_user_id": currentUser.ID,
		}).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed updating invitation")
		}
		return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "you are already a member of this group"})
	}

	var memberCount int64
	if err := h.DB.Model(&models.GroupMember{}).Where("group_id = ?", invitation.GroupID).Count(&memberCount).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed counting members")
	}
	if memberCount >= int64(invitation.Group.MaxMembers) {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "group is already at maximum capacity")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		membership := models.GroupMember{
			GroupID: invitation.GroupID,
			UserID:  currentUser.ID,
			Role:    models.RoleMember,
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}
		return tx.Model(&models.Invitation{}).Where("id = ?", invitationID).Updates(map[string]interface{}{
			"status":          models.InvitationAccepted,
			"invited_user_id": currentUser.ID,
		}).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed accepting invitation")
	}

	logger.InfoWithUser(currentUser.ID.String(), "invitation_accepted", map[string]interface{}{
		"invitation_id": invitationID.String(),
		"group_id":      invitation.GroupID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message":  "invitation accepted",
		"group_id": invitation.GroupID,
	})
}

// Reject declines an invitation. A session is optional; when one is
// present the email must match the invitation.
func (h *InvitationsHandler) Reject(c *fiber.Ctx) error {
	invitationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid invitation id")
	}

	var invitation models.Invitation
	if err := h.DB.First(&invitation, "id = ?", invitationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "invitation not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading invitation")
	}

	h.expireIfDue(&invitation)
	if invitation.Status == models.InvitationExpired {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invitation has expired")
	}
	if invitation.Status != models.InvitationPending {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invitation is no longer valid")
	}

	currentUser := middleware.GetCurrentUser(c)
	if currentUser != nil && currentUser.Email != invitation.InvitedEmail {
		return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "this invitation is not for your email address")
	}

	updates := map[string]interface{}{"status": models.InvitationRejected}
	if currentUser != nil {
		updates["invited_user_id"] = currentUser.ID
	}
	if err := h.DB.Model(&models.Invitation{}).Where("id = ?", invitationID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed rejecting invitation")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "invitation declined"})
}
