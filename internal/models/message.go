package models

import "github.com/google/uuid"

type Message struct {
	BaseModel
	GroupID uuid.UUID `json:"group_id" gorm:"type:uuid;not null;index"`
	UserID  uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Content string    `json:"content" gorm:"type:text;not null"`
	User    User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
