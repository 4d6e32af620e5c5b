package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thereayou/guildchat/internal/models"
)

// forUpdate locks the selected rows until the transaction ends. SQLite
// ignores the clause and relies on its single writer instead.
var forUpdate = clause.Locking{Strength: "UPDATE"}

// CreateGroup inserts the group and makes the creator its first member in
// one transaction, so a group never exists without members.
func (d *Database) CreateGroup(ctx context.Context, group *models.Group, exclusive bool) error {
	if group.Capacity < 1 {
		return ErrInvalidCapacity
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Group{}).Where("name = ?", group.Name).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateName
		}

		if group.CreatedAt.IsZero() {
			group.CreatedAt = time.Now().UTC()
		}
		if err := tx.Omit(clause.Associations).Create(group).Error; err != nil {
			return err
		}

		return joinTx(tx, group, group.CreatedBy, exclusive)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateName
	}
	return err
}

// JoinGroup adds the user to the named group. Capacity, duplicate and
// exclusivity checks run under row locks on the group and the user.
func (d *Database) JoinGroup(ctx context.Context, name string, userID uuid.UUID, exclusive bool) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Clauses(forUpdate).Where("name = ?", name).First(&group).Error; err != nil {
			return notFound(err, ErrGroupNotFound)
		}
		return joinTx(tx, &group, userID, exclusive)
	})
}

func joinTx(tx *gorm.DB, group *models.Group, userID uuid.UUID, exclusive bool) error {
	var user models.User
	if err := tx.Clauses(forUpdate).Select("id").Where("id = ?", userID).First(&user).Error; err != nil {
		return notFound(err, ErrUserNotFound)
	}

	var memberships []models.GroupMember
	if err := tx.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return err
	}
	for _, m := range memberships {
		if m.GroupID == group.ID {
			return ErrAlreadyMember
		}
	}
	if exclusive && len(memberships) > 0 {
		return ErrAlreadyInOtherGroup
	}

	var count int64
	if err := tx.Model(&models.GroupMember{}).Where("group_id = ?", group.ID).Count(&count).Error; err != nil {
		return err
	}
	if count >= int64(group.Capacity) {
		return ErrGroupFull
	}

	member := models.GroupMember{GroupID: group.ID, UserID: userID, JoinedAt: time.Now().UTC()}
	if err := tx.Omit(clause.Associations).Create(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyMember
		}
		return err
	}
	return nil
}

// LeaveGroup removes the user from the named group and deletes the group
// when nobody is left. deleted reports whether the group was removed.
func (d *Database) LeaveGroup(ctx context.Context, name string, userID uuid.UUID) (deleted bool, err error) {
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Clauses(forUpdate).Where("name = ?", name).First(&group).Error; err != nil {
			return notFound(err, ErrGroupNotFound)
		}

		res := tx.Where("group_id = ? AND user_id = ?", group.ID, userID).Delete(&models.GroupMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotMember
		}

		var remaining int64
		if err := tx.Model(&models.GroupMember{}).Where("group_id = ?", group.ID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		if err := tx.Delete(&models.Group{}, "id = ?", group.ID).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (d *Database) GetGroup(ctx context.Context, name string) (*models.Group, error) {
	var group models.Group
	if err := d.db.WithContext(ctx).Where("name = ?", name).First(&group).Error; err != nil {
		return nil, notFound(err, ErrGroupNotFound)
	}
	return &group, nil
}

// GetGroupWithMembers loads the group and its members ordered by join time.
func (d *Database) GetGroupWithMembers(ctx context.Context, name string) (*models.Group, error) {
	var group models.Group
	err := d.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Preload("Members.User").
		Where("name = ?", name).
		First(&group).Error
	if err != nil {
		return nil, notFound(err, ErrGroupNotFound)
	}
	return &group, nil
}

func (d *Database) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

func (d *Database) CountMembers(ctx context.Context, groupID uuid.UUID) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.GroupMember{}).Where("group_id = ?", groupID).Count(&count).Error
	return count, err
}

// ListGroups returns every group with its member count, by name.
func (d *Database) ListGroups(ctx context.Context) ([]models.GroupSummary, error) {
	var groups []models.Group
	if err := d.db.WithContext(ctx).Order("name ASC").Find(&groups).Error; err != nil {
		return nil, err
	}

	type row struct {
		GroupID uuid.UUID
		Count   int64
	}
	var rows []row
	err := d.db.WithContext(ctx).Model(&models.GroupMember{}).
		Select("group_id, count(*) as count").
		Group("group_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		counts[r.GroupID] = r.Count
	}

	out := make([]models.GroupSummary, len(groups))
	for i, g := range groups {
		out[i] = models.GroupSummary{Group: g, MemberCount: counts[g.ID]}
	}
	return out, nil
}

// UserGroups returns the groups the user belongs to.
func (d *Database) UserGroups(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	var groups []models.Group
	err := d.db.WithContext(ctx).
		Joins("JOIN group_members gm ON gm.group_id = groups.id").
		Where("gm.user_id = ?", userID).
		Order("groups.name ASC").
		Find(&groups).Error
	return groups, err
}
