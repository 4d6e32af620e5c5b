package database

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrGroupNotFound       = errors.New("group not found")
	ErrDuplicateName       = errors.New("group name already taken")
	ErrAlreadyMember       = errors.New("already a member of this group")
	ErrGroupFull           = errors.New("group is full")
	ErrAlreadyInOtherGroup = errors.New("already a member of another group")
	ErrNotMember           = errors.New("not a member of this group")
	ErrInvalidCapacity     = errors.New("group capacity must be positive")
)
