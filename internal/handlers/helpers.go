package handlers

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/powderplan/backend/internal/models"
	"gorm.io/gorm"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func isValidEmail(value string) bool {
	return emailPattern.MatchString(strings.TrimSpace(value))
}

// getMembership loads the caller's membership row for a group.
// gorm.ErrRecordNotFound means "not a member" and maps to 403.
func getMembership(db *gorm.DB, groupID, userID uuid.UUID) (*models.GroupMember, error) {
	var membership models.GroupMember
	err := db.First(&membership, "group_id = ? AND user_id = ?", groupID, userID).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}
