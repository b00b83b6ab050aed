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

type GroupsHandler struct {
	DB     *gorm.DB
	Mailer *services.Mailer
}

func NewGroupsHandler(db *gorm.DB, mailer *services.Mailer) *GroupsHandler {
	return &GroupsHandler{DB: db, Mailer: mailer}
}

type createGroupRequest struct {
	Name         string   `json:"name"`
	Description  *string  `json:"description"`
	CheckInDate  string   `json:"check_in_date"`
	CheckOutDate string   `json:"check_out_date"`
	MaxMembers   int      `json:"max_members"`
	InviteEmails []string `json:"invite_emails"`
}

func (h *GroupsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.CheckInDate == "" || req.CheckOutDate == "" {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "name, check_in_date, and check_out_date are required")
	}

	checkIn, err := parseDate(req.CheckInDate)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid check_in_date")
	}
	checkOut, err := parseDate(req.CheckOutDate)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid check_out_date")
	}
	if !checkOut.After(checkIn) {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "check-out date must be after check-in date")
	}

	maxMembers := req.MaxMembers
	if maxMembers <= 0 {
		maxMembers = 5
	}

	group := models.Group{
		Name:         req.Name,
		Description:  req.Description,
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
		MaxMembers:   maxMembers,
		Status:       models.GroupStatusPlanning,
		CreatedByID:  currentUser.ID,
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		membership := models.GroupMember{
			GroupID: group.ID,
			UserID:  currentUser.ID,
			Role:    models.RoleOwner,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed creating group")
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_created", map[string]interface{}{
		"group_id":   group.ID.String(),
		"group_name": group.Name,
	})

	if len(req.InviteEmails) > 0 {
		h.sendBulkInvitations(&group, currentUser, req.InviteEmails)
	}

	group.MemberCount = 1
	group.UserRole = models.RoleOwner
	return utils.Success(c, fiber.StatusCreated, group)
}

// sendBulkInvitations creates invitation rows for the given emails and
// delivers them in the background. Failures never fail group creation.
func (h *GroupsHandler) sendBulkInvitations(group *models.Group, inviter *models.User, emails []string) {
	expiresAt := time.Now().Add(models.InvitationTTL)

	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if !isValidEmail(email) || email == inviter.Email {
			continue
		}

		invitation := models.Invitation{
			GroupID:      group.ID,
			InvitedByID:  inviter.ID,
			InvitedEmail: email,
			Status:       models.InvitationPending,
			ExpiresAt:    expiresAt,
		}

		var invitedUser models.User
		if err := h.DB.First(&invitedUser, "email = ?", email).Error; err == nil {
			invitation.InvitedUserID = &invitedUser.ID
		}

		if err := h.DB.Create(&invitation).Error; err != nil {
			logger.Error("bulk_invitation_create_failed", err, map[string]interface{}{
				"group_id": group.ID.String(),
				"email":    email,
			})
			continue
		}

		if h.Mailer != nil {
			go h.Mailer.SendInvitation(&invitation, group, inviter)
		}
	}
}

func (h *GroupsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c)

	base := h.DB.
		Model(&models.Group{}).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", currentUser.ID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed counting groups")
	}

	var groups []models.Group
	if err := utils.ApplyPagination(base.Preload("Members.User").Order("groups.created_at DESC"), p).
		Find(&groups).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed listing groups")
	}

	for i := range groups {
		groups[i].MemberCount = len(groups[i].Members)
		for _, member := range groups[i].Members {
			if member.UserID == currentUser.ID {
				groups[i].UserRole = member.Role
				break
			}
		}
	}

	return utils.Paginated(c, groups, p.Page, p.Limit, total)
}

func (h *GroupsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid group id")
	}

	membership, err := getMembership(h.DB, groupID, currentUser.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "group access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed validating membership")
	}

	var group models.Group
	if err := h.DB.Preload("Members.User").First(&group, "id = ?", groupID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "group not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading group")
	}

	group.MemberCount = len(group.Members)
	group.UserRole = membership.Role
	return utils.Success(c, fiber.StatusOK, group)
}

type updateGroupRequest struct {
	Name         *string             `json:"name"`
	Description  *string             `json:"description"`
	CheckInDate  *string             `json:"check_in_date"`
	CheckOutDate *string             `json:"check_out_date"`
	MaxMembers   *int                `json:"max_members"`
	Status       *models.GroupStatus `json:"status"`
}

// allowedTransitions are the status changes an owner/admin may request
// directly. voting_closed is only ever entered through the voting
// close endpoint.
var allowedTransitions = map[models.GroupStatus][]models.GroupStatus{
	models.GroupStatusPlanning:     {models.GroupStatusVoting, models.GroupStatusCancelled},
	models.GroupStatusVoting:       {models.GroupStatusCancelled},
	models.GroupStatusVotingClosed: {models.GroupStatusBooked, models.GroupStatusCancelled},
	models.GroupStatusBooked:       {models.GroupStatusCompleted, models.GroupStatusCancelled},
}

func transitionAllowed(from, to models.GroupStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (h *GroupsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid group id")
	}

	membership, err := getMembership(h.DB, groupID, currentUser.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "group access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed validating membership")
	}
	if !membership.Role.CanManage() {
		return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "insufficient permissions")
	}

	var group models.Group
	if err := h.DB.First(&group, "id = ?", groupID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "group not found")
	}

	var req updateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		if trimmed == "" {
			updates["description"] = nil
		} else {
			updates["description"] = trimmed
		}
	}

	checkIn := group.CheckInDate
	checkOut := group.CheckOutDate
	if req.CheckInDate != nil {
		if checkIn, err = parseDate(*req.CheckInDate); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid check_in_date")
		}
		updates["check_in_date"] = checkIn
	}
	if req.CheckOutDate != nil {
		if checkOut, err = parseDate(*req.CheckOutDate); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid check_out_date")
		}
		updates["check_out_date"] = checkOut
	}
	if !checkOut.After(checkIn) {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "check-out date must be after check-in date")
	}

	if req.MaxMembers != nil {
		var memberCount int64
		if err := h.DB.Model(&models.GroupMember{}).Where("group_id = ?", groupID).Count(&memberCount).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed counting members")
		}
		if int64(*req.MaxMembers) < memberCount {
			return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "max_members cannot be below the current member count")
		}
		updates["max_members"] = *req.MaxMembers
	}

	if req.Status != nil && *req.Status != group.Status {
		if !transitionAllowed(group.Status, *req.Status) {
			return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid status transition")
		}
		updates["status"] = *req.Status
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "no valid fields to update")
	}

	if err := h.DB.Model(&models.Group{}).Where("id = ?", groupID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed updating group")
	}

	var updated models.Group
	if err := h.DB.Preload("Members.User").First(&updated, "id = ?", groupID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading updated group")
	}
	updated.MemberCount = len(updated.Members)
	updated.UserRole = membership.Role
	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *GroupsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid group id")
	}

	membership, err := getMembership(h.DB, groupID, currentUser.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "group access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed validating membership")
	}
	if membership.Role != models.RoleOwner {
		return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "only the group owner can delete the group")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.Vote{},
			&models.Message{},
			&models.Invitation{},
			&models.GroupMember{},
		} {
			if err := tx.Where("group_id = ?", groupID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Group{}, "id = ?", groupID).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed deleting group")
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_deleted", map[string]interface{}{
		"group_id": groupID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}

// RemoveMember removes a member. Owners and admins may remove others;
// any member may remove themselves (leave). The owner can never be
// removed.
func (h *GroupsHandler) RemoveMember(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid group id")
	}
	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid user id")
	}

	actor, err := getMembership(h.DB, groupID, currentUser.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "group access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed validating membership")
	}

	target, err := getMembership(h.DB, groupID, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "member not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading target membership")
	}

	if target.Role == models.RoleOwner {
		return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "cannot remove the group owner")
	}
	isSelf := currentUser.ID == userID
	if !isSelf && !actor.Role.CanManage() {
		return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "insufficient permissions")
	}
	if !isSelf && actor.Role == models.RoleAdmin && target.Role == models.RoleAdmin {
		return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "admins cannot remove other admins")
	}

	if err := h.DB.Delete(&models.GroupMember{}, "id = ?", target.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed removing member")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"removed": true})
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
