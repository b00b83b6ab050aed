package models

type User struct {
	BaseModel
	Email        string        `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string        `json:"-" gorm:"type:text;not null"`
	FullName     string        `json:"full_name" gorm:"type:varchar(200);not null"`
	AvatarURL    *string       `json:"avatar_url,omitempty" gorm:"type:text"`
	Memberships  []GroupMember `json:"-" gorm:"foreignKey:UserID"`
}
