//go:generate go run go.uber.org/mock/mockgen -source=user_repository.go -destination=../../mocks/mock_user_repository.go -package=mocks
package storage

import (
	"context"
	"interest-chat/domain/account"
	"interest-chat/domain/chat"
	"interest-chat/errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	userPrefix      = "user:"
	userEmailPrefix = "idx:user:email:"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, user account.User) (account.User, error)
	GetUserByEmail(ctx context.Context, email string) (account.User, error)
	FindByID(ctx context.Context, userID chat.UserID) (account.User, error)
	UpdateUser(ctx context.Context, user account.User) error
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

type userRecord struct {
	ID            string     `json:"id"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"passwordHash"`
	Roles         []string   `json:"roles"`
	Interests     []string   `json:"interests"`
	CreatedAt     time.Time  `json:"createdAt"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
}

func userKey(id chat.UserID) []byte {
	return []byte(userPrefix + string(id))
}

func userEmailKey(email string) []byte {
	return []byte(userEmailPrefix + normalizeEmail(email))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser persists a new profile and returns it with its generated ID.
// The password must already be hashed.
func (u *UserRepository) CreateUser(ctx context.Context, user account.User) (account.User, error) {
	user.ID = chat.UserID(uuid.NewString())
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = time.Now().UTC()
	if len(user.Roles) == 0 {
		user.Roles = []string{"user"}
	}

	err := update(ctx, u.db, func(txn *badger.Txn) error {
		taken, err := exists(txn, userEmailKey(user.Email))
		if err != nil {
			return err
		}
		if taken {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userEmailKey(user.Email), []byte(user.ID)); err != nil {
			return err
		}
		return setJSON(txn, userKey(user.ID), fromUser(user))
	})
	if err != nil {
		return account.User{}, err
	}
	return user, nil
}

// GetUserByEmail resolves the email index, then loads the profile.
func (u *UserRepository) GetUserByEmail(ctx context.Context, email string) (account.User, error) {
	var record userRecord
	err := view(ctx, u.db, func(txn *badger.Txn) error {
		item, err := txn.Get(userEmailKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(chat.UserID(id)), &record, errors.ErrUserNotFound)
	})
	if err != nil {
		return account.User{}, err
	}
	return toUser(record), nil
}

func (u *UserRepository) FindByID(ctx context.Context, userID chat.UserID) (account.User, error) {
	var record userRecord
	err := view(ctx, u.db, func(txn *badger.Txn) error {
		return getJSON(txn, userKey(userID), &record, errors.ErrUserNotFound)
	})
	if err != nil {
		return account.User{}, err
	}
	return toUser(record), nil
}

// UpdateUser overwrites the profile. The email is immutable.
func (u *UserRepository) UpdateUser(ctx context.Context, user account.User) error {
	return update(ctx, u.db, func(txn *badger.Txn) error {
		var current userRecord
		if err := getJSON(txn, userKey(user.ID), &current, errors.ErrUserNotFound); err != nil {
			return err
		}
		user.Email = current.Email
		user.CreatedAt = current.CreatedAt
		return setJSON(txn, userKey(user.ID), fromUser(user))
	})
}

func fromUser(user account.User) userRecord {
	return userRecord{
		ID:            string(user.ID),
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Email:         user.Email,
		PasswordHash:  user.PasswordHash,
		Roles:         user.Roles,
		Interests:     lo.Map(user.Interests, func(id chat.InterestID, _ int) string { return string(id) }),
		CreatedAt:     user.CreatedAt,
		DeactivatedAt: user.DeactivatedAt,
	}
}

func toUser(record userRecord) account.User {
	return account.User{
		ID:            chat.UserID(record.ID),
		FirstName:     record.FirstName,
		LastName:      record.LastName,
		Email:         record.Email,
		PasswordHash:  record.PasswordHash,
		Roles:         record.Roles,
		Interests:     lo.Map(record.Interests, func(id string, _ int) chat.InterestID { return chat.InterestID(id) }),
		CreatedAt:     record.CreatedAt,
		DeactivatedAt: record.DeactivatedAt,
	}
}
