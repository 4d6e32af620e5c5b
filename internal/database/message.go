package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/pkg/roomkey"
)

var ErrEmptyMessage = errors.New("message body is empty")

// AppendMessage stamps the message with the server clock and stores it.
// The stamp is truncated to microseconds so the returned value matches what
// Postgres hands back on read.
func (d *Database) AppendMessage(ctx context.Context, message *models.Message) error {
	if message.Body == "" {
		return ErrEmptyMessage
	}
	message.ID = 0
	message.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	return d.db.WithContext(ctx).Omit(clause.Associations).Create(message).Error
}

// PairMessages returns the direct conversation between two users, both
// directions, oldest first.
func (d *Database) PairMessages(ctx context.Context, a, b string) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.WithContext(ctx).
		Where("room_key = ? AND kind = ?", roomkey.Pair(a, b).String(), models.KindDirect).
		Order("created_at ASC, id ASC").
		Preload("Sender").
		Find(&messages).Error
	return messages, err
}

// GroupMessages returns the messages of one group incarnation, oldest first.
func (d *Database) GroupMessages(ctx context.Context, groupID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.WithContext(ctx).
		Where("group_id = ? AND kind = ?", groupID, models.KindGroup).
		Order("created_at ASC, id ASC").
		Preload("Sender").
		Find(&messages).Error
	return messages, err
}

// LastPairMessage returns the newest direct message between two users or nil.
func (d *Database) LastPairMessage(ctx context.Context, a, b string) (*models.Message, error) {
	var messages []models.Message
	err := d.db.WithContext(ctx).
		Where("room_key = ? AND kind = ?", roomkey.Pair(a, b).String(), models.KindDirect).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&messages).Error
	if err != nil || len(messages) == 0 {
		return nil, err
	}
	return &messages[0], nil
}
