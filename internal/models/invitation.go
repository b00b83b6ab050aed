package models

import (
	"time"

	"github.com/google/uuid"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
	InvitationExpired  InvitationStatus = "expired"
)

// InvitationTTL is how long an invitation stays valid.
const InvitationTTL = 7 * 24 * time.Hour

// Invitation offers membership in a group to an email address.
// Expiry is lazy: readers call IsExpired and persist the transition
// before acting on the invitation.
type Invitation struct {
	BaseModel
	GroupID       uuid.UUID        `json:"group_id" gorm:"type:uuid;not null;index"`
	InvitedByID   uuid.UUID        `json:"invited_by" gorm:"type:uuid;not null"`
	InvitedEmail  string           `json:"invited_email" gorm:"type:varchar(255);not null;index"`
	InvitedUserID *uuid.UUID       `json:"invited_user_id,omitempty" gorm:"type:uuid"`
	Status        InvitationStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Message       *string          `json:"message,omitempty" gorm:"type:text"`
	ExpiresAt     time.Time        `json:"expires_at" gorm:"not null"`

	Group   Group `json:"group,omitempty" gorm:"foreignKey:GroupID"`
	Inviter User  `json:"inviter,omitempty" gorm:"foreignKey:InvitedByID"`
}

func (i *Invitation) IsExpired(now time.Time) bool {
	return i.Status == InvitationPending && now.After(i.ExpiresAt)
}
