package chat

import (
	"interest-chat/errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// InterestID identifies an interest group. It doubles as the realtime channel identifier.
type InterestID string

// Validate rejects empty identifiers and anything that is not a UUID.
func (id InterestID) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return errors.ErrInvalidInterestID
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return errors.ErrInvalidInterestID
	}
	return nil
}

func (id InterestID) String() string { return string(id) }

type UserID string

func (id UserID) String() string { return string(id) }

type Interest struct {
	ID        InterestID
	Name      string
	Members   []UserID
	CreatedAt time.Time
	DeletedAt *time.Time
}

func (i Interest) IsDeleted() bool { return i.DeletedAt != nil }

func (i Interest) HasMember(userID UserID) bool {
	return lo.Contains(i.Members, userID)
}

// AddMember returns true when userID was not yet a member.
func (i *Interest) AddMember(userID UserID) bool {
	if i.HasMember(userID) {
		return false
	}
	i.Members = append(i.Members, userID)
	return true
}

// RemoveMember returns true when userID was a member.
func (i *Interest) RemoveMember(userID UserID) bool {
	if !i.HasMember(userID) {
		return false
	}
	i.Members = lo.Without(i.Members, userID)
	return true
}
