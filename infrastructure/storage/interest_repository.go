package storage

import (
	"context"
	"fmt"
	"interest-chat/domain/chat"
	"interest-chat/errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	interestPrefix     = "interest:"
	interestNamePrefix = "idx:interest:name:"
)

// InterestRepository is both the interest directory and the membership store.
// The member set lives inside the interest record, so every membership change
// is a single-record read-modify-write.
type InterestRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewInterestRepository(db *badger.DB, log *slog.Logger) *InterestRepository {
	return &InterestRepository{db: db, log: log}
}

type interestRecord struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Members   []string   `json:"members"`
	CreatedAt time.Time  `json:"createdAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func interestKey(id chat.InterestID) []byte {
	return []byte(interestPrefix + string(id))
}

func interestNameKey(name string) []byte {
	return []byte(interestNamePrefix + name)
}

func (r *InterestRepository) CreateInterest(ctx context.Context, name string) (chat.Interest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return chat.Interest{}, errors.ErrMissingName
	}
	interest := chat.Interest{
		ID:        chat.InterestID(uuid.NewString()),
		Name:      name,
		Members:   []chat.UserID{},
		CreatedAt: time.Now().UTC(),
	}
	err := update(ctx, r.db, func(txn *badger.Txn) error {
		taken, err := exists(txn, interestNameKey(name))
		if err != nil {
			return err
		}
		if taken {
			return errors.ErrInterestExists
		}
		if err := txn.Set(interestNameKey(name), []byte(interest.ID)); err != nil {
			return err
		}
		return setJSON(txn, interestKey(interest.ID), fromInterest(interest))
	})
	if err != nil {
		return chat.Interest{}, err
	}
	r.log.Debug("Interest created", "id", interest.ID, "name", name)
	return interest, nil
}

func (r *InterestRepository) FindInterest(ctx context.Context, interestID chat.InterestID) (chat.Interest, error) {
	var interest chat.Interest
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		var err error
		interest, err = r.load(txn, interestID)
		return err
	})
	return interest, err
}

// ListInterests returns the live interests sorted by name.
func (r *InterestRepository) ListInterests(ctx context.Context) ([]chat.Interest, error) {
	var interests []chat.Interest
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		prefix := []byte(interestPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record interestRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return fmt.Errorf("failed to decode interest %s: %w", it.Item().Key(), err)
			}
			if record.DeletedAt == nil {
				interests = append(interests, toInterest(record))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(interests, func(i, j int) bool { return interests[i].Name < interests[j].Name })
	return interests, nil
}

func (r *InterestRepository) IsMember(ctx context.Context, interestID chat.InterestID, userID chat.UserID) (bool, error) {
	interest, err := r.FindInterest(ctx, interestID)
	if err != nil {
		return false, err
	}
	return interest.HasMember(userID), nil
}

// AddMember is idempotent. An existing member leaves the record untouched.
func (r *InterestRepository) AddMember(ctx context.Context, interestID chat.InterestID, userID chat.UserID) error {
	return r.mutate(ctx, interestID, func(interest *chat.Interest) bool {
		return interest.AddMember(userID)
	})
}

func (r *InterestRepository) RemoveMember(ctx context.Context, interestID chat.InterestID, userID chat.UserID) error {
	return r.mutate(ctx, interestID, func(interest *chat.Interest) bool {
		return interest.RemoveMember(userID)
	})
}

func (r *InterestRepository) MemberCount(ctx context.Context, interestID chat.InterestID) (int, error) {
	interest, err := r.FindInterest(ctx, interestID)
	if err != nil {
		return 0, err
	}
	return len(interest.Members), nil
}

// mutate applies change inside one transaction and writes only when change reports a difference.
func (r *InterestRepository) mutate(ctx context.Context, interestID chat.InterestID, change func(*chat.Interest) bool) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		interest, err := r.load(txn, interestID)
		if err != nil {
			return err
		}
		if !change(&interest) {
			return nil
		}
		return setJSON(txn, interestKey(interestID), fromInterest(interest))
	})
}

// load treats a soft deleted interest as absent.
func (r *InterestRepository) load(txn *badger.Txn, interestID chat.InterestID) (chat.Interest, error) {
	var record interestRecord
	if err := getJSON(txn, interestKey(interestID), &record, errors.ErrInterestNotFound); err != nil {
		return chat.Interest{}, err
	}
	if record.DeletedAt != nil {
		return chat.Interest{}, errors.ErrInterestNotFound
	}
	return toInterest(record), nil
}

func fromInterest(interest chat.Interest) interestRecord {
	return interestRecord{
		ID:        string(interest.ID),
		Name:      interest.Name,
		Members:   lo.Map(interest.Members, func(id chat.UserID, _ int) string { return string(id) }),
		CreatedAt: interest.CreatedAt,
		DeletedAt: interest.DeletedAt,
	}
}

func toInterest(record interestRecord) chat.Interest {
	return chat.Interest{
		ID:        chat.InterestID(record.ID),
		Name:      record.Name,
		Members:   lo.Map(record.Members, func(id string, _ int) chat.UserID { return chat.UserID(id) }),
		CreatedAt: record.CreatedAt,
		DeletedAt: record.DeletedAt,
	}
}
