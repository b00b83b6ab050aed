package models

import "github.com/google/uuid"

type VoteWeight string

const (
	WeightLow    VoteWeight = "1"
	WeightMedium VoteWeight = "2"
	WeightHigh   VoteWeight = "3"
)

func (w VoteWeight) Valid() bool {
	return w == WeightLow || w == WeightMedium || w == WeightHigh
}

// Value returns the numeric multiplier for ranking.
func (w VoteWeight) Value() int {
	switch w {
	case WeightMedium:
		return 2
	case WeightHigh:
		return 3
	default:
		return 1
	}
}

// Vote is one weighted opinion on a hotel. A user holds at most one
// vote per (group, hotel); casting again replaces the previous row.
// HotelName and HotelData are denormalized so results stay renderable
// after the upstream hotel record disappears.
type Vote struct {
	BaseModel
	GroupID   uuid.UUID  `json:"group_id" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	HotelID   string     `json:"hotel_id" gorm:"type:varchar(100);not null;index"`
	HotelName string     `json:"hotel_name" gorm:"type:varchar(255);not null"`
	HotelData JSON       `json:"hotel_data,omitempty"`
	IsUpvote  bool       `json:"is_upvote" gorm:"not null"`
	Weight    VoteWeight `json:"weight" gorm:"type:varchar(1);not null;default:'1'"`
	User      User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
