package database_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/database/dbtest"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/pkg/roomkey"
)

func directMessage(from, to *models.User, body string) *models.Message {
	recipient := to.ID
	return &models.Message{
		Kind:        models.KindDirect,
		RoomKey:     roomkey.Pair(from.Email, to.Email).String(),
		SenderID:    from.ID,
		RecipientID: &recipient,
		Body:        body,
	}
}

func TestAppendMessage_PairRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	a := dbtest.CreateUser(t, db, "a@x.com", "A")
	b := dbtest.CreateUser(t, db, "b@x.com", "B")
	c := dbtest.CreateUser(t, db, "c@x.com", "C")

	first := directMessage(a, b, "hi")
	require.NoError(t, db.AppendMessage(ctx, first))
	assert.NotZero(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	require.NoError(t, db.AppendMessage(ctx, directMessage(b, a, "hello")))
	require.NoError(t, db.AppendMessage(ctx, directMessage(a, c, "not for b")))

	messages, err := db.PairMessages(ctx, "b@x.com", "a@x.com")
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, "hi", messages[0].Body)
	assert.Equal(t, "a@x.com", messages[0].Sender.Email)
	assert.Equal(t, first.ID, messages[0].ID)
	assert.True(t, first.CreatedAt.Equal(messages[0].CreatedAt))
	assert.Equal(t, "hello", messages[1].Body)
	assert.Equal(t, "B", messages[1].Sender.Name)
	assert.False(t, messages[1].CreatedAt.Before(messages[0].CreatedAt))

	last, err := db.LastPairMessage(ctx, "a@x.com", "b@x.com")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "hello", last.Body)

	none, err := db.LastPairMessage(ctx, "b@x.com", "c@x.com")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAppendMessage_IgnoresClientTimestamp(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	a := dbtest.CreateUser(t, db, "a@x.com", "A")
	b := dbtest.CreateUser(t, db, "b@x.com", "B")

	msg := directMessage(a, b, "hi")
	msg.CreatedAt = msg.CreatedAt.AddDate(-10, 0, 0)
	require.NoError(t, db.AppendMessage(ctx, msg))
	assert.Greater(t, msg.CreatedAt.Year(), 2020)
}

func TestAppendMessage_Empty(t *testing.T) {
	db := dbtest.Open(t)
	err := db.AppendMessage(context.Background(), &models.Message{Kind: models.KindDirect})
	assert.ErrorIs(t, err, database.ErrEmptyMessage)
}

func TestGroupMessages(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	a := dbtest.CreateUser(t, db, "a@x.com", "A")

	group := &models.Group{Name: "Guild", CreatedBy: a.ID, Capacity: 3}
	require.NoError(t, db.CreateGroup(ctx, group, true))

	groupID := group.ID
	for _, body := range []string{"one", "two", "three"} {
		require.NoError(t, db.AppendMessage(ctx, &models.Message{
			Kind:     models.KindGroup,
			RoomKey:  roomkey.Group(group.Name).String(),
			SenderID: a.ID,
			GroupID:  &groupID,
			Body:     body,
		}))
	}

	messages, err := db.GroupMessages(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, body := range []string{"one", "two", "three"} {
		assert.Equal(t, body, messages[i].Body)
		assert.Equal(t, "a@x.com", messages[i].Sender.Email)
	}

	other, err := db.GroupMessages(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}
