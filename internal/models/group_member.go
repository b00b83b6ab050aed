package models

import "github.com/google/uuid"

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// CanManage reports whether the role may administer the group
// (close voting, send invitations, edit trip details).
func (r MemberRole) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

type GroupMember struct {
	BaseModel
	GroupID uuid.UUID  `json:"group_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_group_user"`
	UserID  uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_group_user"`
	Role    MemberRole `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	User    User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Group   Group      `json:"group,omitempty" gorm:"foreignKey:GroupID"`
}
