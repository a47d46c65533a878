package account

import (
	"interest-chat/domain/chat"
	"strings"
	"time"

	"github.com/samber/lo"
)

const UnknownUserName = "Unknown User"

type User struct {
	ID            chat.UserID
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  string
	Roles         []string
	Interests     []chat.InterestID
	CreatedAt     time.Time
	DeactivatedAt *time.Time
}

// DisplayName joins first and last name, falling back to a placeholder when both are blank.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return UnknownUserName
	}
	return name
}

func (u User) IsActive() bool { return u.DeactivatedAt == nil }

// JoinInterests records ids on the profile, skipping the ones already present.
func (u *User) JoinInterests(ids ...chat.InterestID) {
	u.Interests = lo.Uniq(append(u.Interests, ids...))
}
