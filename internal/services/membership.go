package services

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/guildchat/internal/models"
)

const maxGroupNameLength = 255

// MembershipPolicy controls how groups are created and joined.
type MembershipPolicy struct {
	// Exclusive limits every user to one group at a time.
	Exclusive       bool
	DefaultCapacity int
}

// MembershipService guards group membership. mu serializes mutations within
// the process; the store's transactions and row locks cover other processes.
type MembershipService struct {
	store  GroupStore
	policy MembershipPolicy
	mu     sync.Mutex
}

func NewMembershipService(store GroupStore, policy MembershipPolicy) *MembershipService {
	if policy.DefaultCapacity <= 0 {
		policy.DefaultCapacity = models.DefaultGroupCapacity
	}
	return &MembershipService{store: store, policy: policy}
}

func (s *MembershipService) Policy() MembershipPolicy { return s.policy }

// CreateGroup creates a group with creator as its first member. A zero
// capacity means the policy default.
func (s *MembershipService) CreateGroup(ctx context.Context, name, description string, creator uuid.UUID, capacity int) (*models.Group, error) {
	if err := validateGroupName(name); err != nil {
		return nil, err
	}
	if capacity == 0 {
		capacity = s.policy.DefaultCapacity
	}

	group := &models.Group{
		Name:        name,
		Description: description,
		CreatedBy:   creator,
		Capacity:    capacity,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.CreateGroup(ctx, group, s.policy.Exclusive); err != nil {
		return nil, err
	}
	log.Info().Str("module", "services.membership").Str("group", name).
		Str("creator", creator.String()).Int("capacity", capacity).Msg("group created")
	return group, nil
}

func (s *MembershipService) Join(ctx context.Context, name string, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.JoinGroup(ctx, name, userID, s.policy.Exclusive); err != nil {
		return err
	}
	log.Info().Str("module", "services.membership").Str("group", name).Str("user", userID.String()).Msg("member joined")
	return nil
}

// Leave removes the user and reports whether the group was deleted because
// it became empty.
func (s *MembershipService) Leave(ctx context.Context, name string, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.store.LeaveGroup(ctx, name, userID)
	if err != nil {
		return false, err
	}
	log.Info().Str("module", "services.membership").Str("group", name).Str("user", userID.String()).
		Bool("group_deleted", deleted).Msg("member left")
	return deleted, nil
}

func (s *MembershipService) Group(ctx context.Context, name string) (*models.Group, error) {
	return s.store.GetGroup(ctx, name)
}

// IsMember reports membership in the named group. A missing group is an
// error, not a false.
func (s *MembershipService) IsMember(ctx context.Context, name string, userID uuid.UUID) (bool, error) {
	group, err := s.store.GetGroup(ctx, name)
	if err != nil {
		return false, err
	}
	return s.store.IsMember(ctx, group.ID, userID)
}

func validateGroupName(name string) error {
	if name == "" || utf8.RuneCountInString(name) > maxGroupNameLength || !utf8.ValidString(name) {
		return ErrInvalidGroupName
	}
	return nil
}
