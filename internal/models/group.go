package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultGroupCapacity applies when a group is created without a capacity.
const DefaultGroupCapacity = 15

type Group struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"uniqueIndex;not null"`
	Description string
	CreatedBy   uuid.UUID `gorm:"type:uuid;not null"`
	Capacity    int       `gorm:"not null"`
	CreatedAt   time.Time

	Members []GroupMember `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

func (g *Group) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

type GroupMember struct {
	GroupID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	JoinedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}

// GroupSummary is a group with its current member count.
type GroupSummary struct {
	Group
	MemberCount int64
}
