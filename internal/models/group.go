package models

import (
	"time"

	"github.com/google/uuid"
)

type GroupStatus string

const (
	GroupStatusPlanning     GroupStatus = "planning"
	GroupStatusVoting       GroupStatus = "voting"
	GroupStatusVotingClosed GroupStatus = "voting_closed"
	GroupStatusBooked       GroupStatus = "booked"
	GroupStatusCompleted    GroupStatus = "completed"
	GroupStatusCancelled    GroupStatus = "cancelled"
)

// Group is a trip being planned. check_out_date is strictly after
// check_in_date; selected_hotel_* are set when voting closes.
type Group struct {
	BaseModel
	Name              string      `json:"name" gorm:"type:varchar(255);not null"`
	Description       *string     `json:"description,omitempty" gorm:"type:text"`
	CheckInDate       time.Time   `json:"check_in_date" gorm:"not null"`
	CheckOutDate      time.Time   `json:"check_out_date" gorm:"not null"`
	MaxMembers        int         `json:"max_members" gorm:"not null;default:5"`
	Status            GroupStatus `json:"status" gorm:"type:varchar(20);not null;default:'planning';index"`
	SelectedHotelID   *string     `json:"selected_hotel_id,omitempty" gorm:"type:varchar(100)"`
	SelectedHotelData JSON        `json:"selected_hotel_data,omitempty"`
	CreatedByID       uuid.UUID   `json:"created_by" gorm:"type:uuid;not null;index"`

	CreatedBy User          `json:"creator,omitempty" gorm:"foreignKey:CreatedByID"`
	Members   []GroupMember `json:"members,omitempty" gorm:"foreignKey:GroupID"`

	MemberCount int        `json:"member_count" gorm:"-"`
	UserRole    MemberRole `json:"user_role,omitempty" gorm:"-"`
}
