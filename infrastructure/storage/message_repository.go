package storage

import (
	"bytes"
	"context"
	"fmt"
	"interest-chat/domain/chat"
	"interest-chat/errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	messagePrefix   = "msg:"
	messageIDPrefix = "idx:msg:"
)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log, now: time.Now}
}

// WithClock replaces the clock used to stamp appended messages.
func (m *MessageRepository) WithClock(now func() time.Time) *MessageRepository {
	m.now = now
	return m
}

type messageRecord struct {
	ID          string             `json:"id"`
	InterestID  string             `json:"interestId"`
	AuthorID    string             `json:"userId"`
	Body        string             `json:"message"`
	Important   bool               `json:"isImportant"`
	SharedEntry *sharedEntryRecord `json:"sharedEntry,omitempty"`
	Lang        string             `json:"lang,omitempty"`
	CreatedAt   int64              `json:"createdAt"`
}

type sharedEntryRecord struct {
	CategoryID    string `json:"mainCategoryId"`
	SubCategoryID string `json:"subCategoryId"`
	TopicID       string `json:"topicId"`
	EntryID       string `json:"entryId"`
	Title         string `json:"title"`
	Body          string `json:"body"`
}

func messagePrefixFor(interestID chat.InterestID) []byte {
	return []byte(fmt.Sprintf("%s%s:", messagePrefix, interestID))
}

// messageKey is formatted as "msg:{interest_id}:{timestamp_padded}:{uuid}" so that:
//  1. The 19-digit zero padding keeps lexicographical order chronological.
//  2. The UUIDv7 suffix breaks ties between messages stamped with the same instant.
func messageKey(message chat.Message) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s",
		messagePrefix,
		message.InterestID,
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}

func messageIDKey(id uuid.UUID) []byte {
	return []byte(messageIDPrefix + id.String())
}

// Append stamps the message with a server side identity and creation time, then persists it.
// Whatever ID or CreatedAt the caller set is ignored.
func (m *MessageRepository) Append(ctx context.Context, message chat.Message) (chat.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return chat.Message{}, fmt.Errorf("failed to generate message id: %w", err)
	}
	message.ID = id
	message.CreatedAt = m.now().UTC()

	key := messageKey(message)
	data, err := json.Marshal(fromMessage(message))
	if err != nil {
		return chat.Message{}, err
	}
	err = update(ctx, m.db, func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(messageIDKey(message.ID), key)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// ListByInterest walks the interest's log newest first.
// Keys are iterated without their values; only the requested window is decoded.
// A window past the end yields an empty slice and the total count.
func (m *MessageRepository) ListByInterest(ctx context.Context, interestID chat.InterestID, page chat.Page) ([]chat.Message, int, error) {
	messages := make([]chat.Message, 0, page.Size)
	total := 0
	err := view(ctx, m.db, func(txn *badger.Txn) error {
		prefix := messagePrefixFor(interestID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the greatest possible key of the interest, then walk back.
		seekKey := append(bytes.Clone(prefix), 0xFF)
		offset := page.Offset()
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if total >= offset && len(messages) < page.Size {
				var record messageRecord
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &record)
				})
				if err != nil {
					return err
				}
				message, err := toMessage(record)
				if err != nil {
					return err
				}
				messages = append(messages, message)
			}
			total++
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (m *MessageRepository) FindByID(ctx context.Context, messageID uuid.UUID) (chat.Message, error) {
	var record messageRecord
	err := view(ctx, m.db, func(txn *badger.Txn) error {
		item, err := txn.Get(messageIDKey(messageID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrMessageNotFound
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, key, &record, errors.ErrMessageNotFound)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return toMessage(record)
}

func fromMessage(message chat.Message) messageRecord {
	record := messageRecord{
		ID:         message.ID.String(),
		InterestID: string(message.InterestID),
		AuthorID:   string(message.AuthorID),
		Body:       message.Body,
		Important:  message.Important,
		Lang:       message.Lang,
		CreatedAt:  message.CreatedAt.UnixNano(),
	}
	if entry := message.SharedEntry; entry != nil {
		record.SharedEntry = &sharedEntryRecord{
			CategoryID:    entry.Ref.CategoryID,
			SubCategoryID: entry.Ref.SubCategoryID,
			TopicID:       entry.Ref.TopicID,
			EntryID:       entry.Ref.EntryID,
			Title:         entry.Title,
			Body:          entry.Body,
		}
	}
	return record
}

func toMessage(record messageRecord) (chat.Message, error) {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return chat.Message{}, err
	}
	message := chat.Message{
		ID:         id,
		InterestID: chat.InterestID(record.InterestID),
		AuthorID:   chat.UserID(record.AuthorID),
		Body:       record.Body,
		Important:  record.Important,
		Lang:       record.Lang,
		CreatedAt:  time.Unix(0, record.CreatedAt).UTC(),
	}
	if entry := record.SharedEntry; entry != nil {
		message.SharedEntry = &chat.SharedEntry{
			Ref: chat.EntryRef{
				CategoryID:    entry.CategoryID,
				SubCategoryID: entry.SubCategoryID,
				TopicID:       entry.TopicID,
				EntryID:       entry.EntryID,
			},
			Title: entry.Title,
			Body:  entry.Body,
		}
	}
	return message, nil
}
