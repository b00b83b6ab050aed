package handlers

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/powderplan/backend/internal/middleware"
	"github.com/powderplan/backend/internal/models"
	"github.com/powderplan/backend/internal/voting"
	"github.com/powderplan/backend/pkg/logger"
	"github.com/powderplan/backend/pkg/utils"
	"gorm.io/gorm"
)

type VotesHandler struct {
	DB *gorm.DB
}

func NewVotesHandler(db *gorm.DB) *VotesHandler {
	return &VotesHandler{DB: db}
}

type castVoteRequest struct {
	HotelID   string          `json:"hotel_id"`
	HotelName string          `json:"hotel_name"`
	HotelData json.RawMessage `json:"hotel_data"`
	IsUpvote  *bool           `json:"is_upvote"`
	Weight    string          `json:"weight"`
}

// Cast records a member's vote on a hotel. Re-voting on the same hotel
// replaces the previous vote rather than stacking a second one.
func (h *VotesHandler) Cast(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid group id")
	}

	var req castVoteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid request body")
	}
	req.HotelID = strings.TrimSpace(req.HotelID)
	if req.HotelID == "" {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "hotel_id is required")
	}
	if strings.TrimSpace(req.HotelName) == "" {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "hotel_name is required")
	}
	if req.IsUpvote == nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "is_upvote is required")
	}
	weight := models.VoteWeight(req.Weight)
	if req.Weight == "" {
		weight = models.WeightLow
	}
	if !weight.Valid() {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "weight must be one of: 1, 2, 3")
	}

	if _, err := getMembership(h.DB, groupID, currentUser.ID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "group access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed validating membership")
	}

	var group models.Group
	if err := h.DB.First(&group, "id = ?", groupID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "group not found")
	}
	if err := voting.EnsureOpen(group.Status); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, err.Error())
	}

	vote := models.Vote{
		GroupID:   groupID,
		UserID:    currentUser.ID,
		HotelID:   req.HotelID,
		HotelName: req.HotelName,
		HotelData: models.JSON(req.HotelData),
		IsUpvote:  *req.IsUpvote,
		Weight:    weight,
	}

	// Replace, not stack: the delete and insert share one transaction
	// so a failure can never leave the user without a vote.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ? AND user_id = ? AND hotel_id = ?",
			groupID, currentUser.ID, req.HotelID).
			Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		return tx.Create(&vote).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed recording vote")
	}

	logger.InfoWithUser(currentUser.ID.String(), "vote_cast", map[string]interface{}{
		"group_id":  groupID.String(),
		"hotel_id":  req.HotelID,
		"is_upvote": *req.IsUpvote,
		"weight":    string(weight),
	})

	if err := h.DB.Preload("User").First(&vote, "id = ?", vote.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading vote")
	}
	return utils.Success(c, fiber.StatusCreated, vote)
}

func (h *VotesHandler) List(c *fiber.Ctx) error {
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
	if err := h.DB.Model(&models.Vote{}).Where("group_id = ?", groupID).Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed counting votes")
	}

	var votes []models.Vote
	if err := utils.ApplyPagination(
		h.DB.Preload("User").
			Where("group_id = ?", groupID).
			Order("created_at DESC"), p).
		Find(&votes).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed listing votes")
	}

	return utils.Paginated(c, votes, p.Page, p.Limit, total)
}

// Results returns the full tally for a group: per-hotel aggregates
// ranked by weighted score, plus the winner once voting has closed.
func (h *VotesHandler) Results(c *fiber.Ctx) error {
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

	var group models.Group
	if err := h.DB.First(&group, "id = ?", groupID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "group not found")
	}

	var votes []models.Vote
	if err := h.DB.Preload("User").
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&votes).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading votes")
	}

	tally := voting.Tally(votes, currentUser.ID)

	result := fiber.Map{
		"group_id":       group.ID,
		"group_name":     group.Name,
		"group_status":   group.Status,
		"is_voting_open": voting.IsOpen(group.Status),
		"total_hotels":   len(tally.Hotels),
		"total_votes":    tally.TotalVotes,
		"total_voters":   tally.TotalVoters,
		"hotels":         tally.Hotels,
	}
	if group.Status == models.GroupStatusVotingClosed && group.SelectedHotelID != nil {
		result["winner"] = fiber.Map{
			"hotel_id":   *group.SelectedHotelID,
			"hotel_data": group.SelectedHotelData,
		}
	}

	return utils.Success(c, fiber.StatusOK, result)
}

type closeVotingRequest struct {
	SelectedHotelID   string          `json:"selected_hotel_id"`
	SelectedHotelData json.RawMessage `json:"selected_hotel_data"`
}

// Close ends voting for a group. An explicit selected_hotel_id wins
// verbatim; otherwise the weighted tally picks the hotel.
func (h *VotesHandler) Close(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid group id")
	}

	var req closeVotingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid request body")
		}
	}

	membership, err := getMembership(h.DB, groupID, currentUser.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "group access denied")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed validating membership")
	}
	if !membership.Role.CanManage() {
		return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "only group owners and admins can close voting")
	}

	var group models.Group
	if err := h.DB.First(&group, "id = ?", groupID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "group not found")
	}
	if err := voting.EnsureCanClose(group.Status); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, err.Error())
	}

	var selection voting.Selection
	if req.SelectedHotelID != "" {
		selection = voting.Selection{
			HotelID:   req.SelectedHotelID,
			HotelData: models.JSON(req.SelectedHotelData),
		}
	} else {
		var votes []models.Vote
		if err := h.DB.Where("group_id = ?", groupID).Order("created_at ASC").Find(&votes).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading votes")
		}
		selection, err = voting.SelectWinner(votes)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, err.Error())
		}
	}

	updates := map[string]interface{}{
		"status":              models.GroupStatusVotingClosed,
		"selected_hotel_id":   selection.HotelID,
		"selected_hotel_data": selection.HotelData,
	}
	if err := h.DB.Model(&models.Group{}).Where("id = ?", groupID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed closing voting")
	}

	logger.InfoWithUser(currentUser.ID.String(), "voting_closed", map[string]interface{}{
		"group_id":          groupID.String(),
		"selected_hotel_id": selection.HotelID,
		"manual_selection":  req.SelectedHotelID != "",
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"group_id":            groupID,
		"status":              models.GroupStatusVotingClosed,
		"selected_hotel_id":   selection.HotelID,
		"selected_hotel_data": selection.HotelData,
	})
}

type updateVoteRequest struct {
	IsUpvote *bool  `json:"is_upvote"`
	Weight   string `json:"weight"`
}

func (h *VotesHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	voteID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid vote id")
	}

	var req updateVoteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid request body")
	}
	if req.IsUpvote == nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "is_upvote is required")
	}

	var vote models.Vote
	if err := h.DB.First(&vote, "id = ?", voteID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "vote not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading vote")
	}
	if vote.UserID != currentUser.ID {
		return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "you can only modify your own votes")
	}

	var group models.Group
	if err := h.DB.First(&group, "id = ?", vote.GroupID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading group")
	}
	if err := voting.EnsureOpen(group.Status); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, err.Error())
	}

	vote.IsUpvote = *req.IsUpvote
	if req.Weight != "" {
		weight := models.VoteWeight(req.Weight)
		if !weight.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "weight must be one of: 1, 2, 3")
		}
		vote.Weight = weight
	}

	if err := h.DB.Model(&models.Vote{}).Where("id = ?", voteID).Updates(map[string]interface{}{
		"is_upvote": vote.IsUpvote,
		"weight":    vote.Weight,
	}).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed updating vote")
	}

	if err := h.DB.Preload("User").First(&vote, "id = ?", voteID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading vote")
	}
	return utils.Success(c, fiber.StatusOK, vote)
}

func (h *VotesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
	}

	voteID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, "invalid vote id")
	}

	var vote models.Vote
	if err := h.DB.First(&vote, "id = ?", voteID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, utils.CodeNotFound, "vote not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading vote")
	}
	if vote.UserID != currentUser.ID {
		return utils.Error(c, fiber.StatusForbidden, utils.CodeForbidden, "you can only modify your own votes")
	}

	var group models.Group
	if err := h.DB.First(&group, "id = ?", vote.GroupID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed loading group")
	}
	if err := voting.EnsureOpen(group.Status); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, utils.CodeValidationError, err.Error())
	}

	if err := h.DB.Delete(&models.Vote{}, "id = ?", voteID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, utils.CodeDatabaseError, "failed deleting vote")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
