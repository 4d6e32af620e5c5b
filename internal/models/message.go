package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	KindDirect MessageKind = "direct"
	KindGroup  MessageKind = "group"
)

// Message rows are append only. ID breaks ties between equal timestamps.
type Message struct {
	ID          uint        `gorm:"primaryKey;autoIncrement"`
	Kind        MessageKind `gorm:"not null"`
	RoomKey     string      `gorm:"not null;index:idx_messages_room,priority:1"`
	SenderID    uuid.UUID   `gorm:"type:uuid;not null"`
	RecipientID *uuid.UUID  `gorm:"type:uuid"`
	GroupID     *uuid.UUID  `gorm:"type:uuid;index"`
	Body        string      `gorm:"not null"`
	CreatedAt   time.Time   `gorm:"not null;index:idx_messages_room,priority:2"`

	Sender User `gorm:"foreignKey:SenderID"`
}
